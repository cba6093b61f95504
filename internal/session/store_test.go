package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/lembair/portal/internal/backend"
	"github.com/lembair/portal/internal/model"
	"github.com/lembair/portal/internal/storage"
	"github.com/lembair/portal/internal/token"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// fakeAuth はテスト用のAuthBackend実装。
type fakeAuth struct {
	signInToken string
	signInErr   error
	signUpErr   error

	signInCalls int
	signUpCalls int
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (string, error) {
	f.signInCalls++
	if f.signInErr != nil {
		return "", f.signInErr
	}
	return f.signInToken, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, username, password string) error {
	f.signUpCalls++
	return f.signUpErr
}

func validToken(username string) string {
	return token.MustEncode(model.Claims{
		Username: username,
		Email:    username + "@example.com",
		Roles:    model.RoleSet{model.RolePassenger: {}},
	})
}

func TestStore_Login_Success(t *testing.T) {
	var buf bytes.Buffer
	mem := storage.NewMemoryStore()
	auth := &fakeAuth{signInToken: validToken("alice")}
	s := NewStore(mem, auth, newTestLogger(&buf))

	if err := s.Login(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}

	if s.Token() == "" {
		t.Error("ログイン後はトークンを保持しているべき")
	}
	claims := s.Claims()
	if claims == nil || claims.Username != "alice" {
		t.Errorf("Claims = %+v, want alice", claims)
	}
	if mem.Get(storage.KeyToken) != s.Token() {
		t.Error("ログイン成功時はトークンを永続化すべき")
	}
}

func TestStore_Login_FailureLeavesStateUntouched(t *testing.T) {
	var buf bytes.Buffer
	mem := storage.NewMemoryStore()
	auth := &fakeAuth{signInToken: validToken("alice")}
	s := NewStore(mem, auth, newTestLogger(&buf))

	if err := s.Login(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("事前ログインがエラーを返した: %v", err)
	}
	previousToken := s.Token()

	// 2回目のログインは失敗させる
	auth.signInErr = backend.NewServerReported("Invalid credentials")
	err := s.Login(context.Background(), "alice@example.com", "wrong")
	if err == nil {
		t.Fatal("ログイン失敗はエラーを返すべき")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeLoginFailed {
		t.Errorf("エラーコード = %v, want LOGIN_FAILED", err)
	}
	if apiErr.Message != "Invalid credentials" {
		t.Errorf("Message = %q, サーバーのメッセージをそのまま保持すべき", apiErr.Message)
	}

	// 既存のセッションは失敗の影響を受けない
	if s.Token() != previousToken {
		t.Error("ログイン失敗時は既存のトークンに触れるべきでない")
	}
	if s.Claims() == nil {
		t.Error("ログイン失敗時は既存のクレームに触れるべきでない")
	}
}

func TestStore_Login_UndecodableTokenIsError(t *testing.T) {
	var buf bytes.Buffer
	auth := &fakeAuth{signInToken: "not-a-jwt"}
	s := NewStore(storage.NewMemoryStore(), auth, newTestLogger(&buf))

	if err := s.Login(context.Background(), "a@example.com", "pw"); err == nil {
		t.Fatal("復号できないトークンにはエラーを返すべき")
	}
	if s.Token() != "" {
		t.Error("復号できないトークンはセッションに保存すべきでない")
	}
}

func TestStore_Register_DelegatesToLogin(t *testing.T) {
	var buf bytes.Buffer
	auth := &fakeAuth{signInToken: validToken("bob")}
	s := NewStore(storage.NewMemoryStore(), auth, newTestLogger(&buf))

	if err := s.Register(context.Background(), "bob@example.com", "bob", "pw"); err != nil {
		t.Fatalf("Register がエラーを返した: %v", err)
	}

	if auth.signUpCalls != 1 {
		t.Errorf("SignUp 呼び出し回数 = %d, want 1", auth.signUpCalls)
	}
	if auth.signInCalls != 1 {
		t.Errorf("登録成功後は同じ認証情報でログインすべき (SignIn = %d)", auth.signInCalls)
	}
	if s.Token() == "" {
		t.Error("登録成功後はログイン済みであるべき")
	}
}

func TestStore_Register_SignUpFailureDoesNotLogin(t *testing.T) {
	var buf bytes.Buffer
	auth := &fakeAuth{
		signInToken: validToken("bob"),
		signUpErr:   backend.NewServerReported("Email already taken"),
	}
	s := NewStore(storage.NewMemoryStore(), auth, newTestLogger(&buf))

	err := s.Register(context.Background(), "bob@example.com", "bob", "pw")
	if err == nil {
		t.Fatal("登録失敗はエラーを返すべき")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeRegistrationFailed {
		t.Errorf("エラーコード = %v, want REGISTRATION_FAILED", err)
	}
	if auth.signInCalls != 0 {
		t.Error("登録失敗時はログインを試みるべきでない")
	}
	if s.Token() != "" {
		t.Error("登録失敗時は未認証のままであるべき")
	}
}

func TestStore_Logout_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	mem := storage.NewMemoryStore()
	auth := &fakeAuth{signInToken: validToken("alice")}
	s := NewStore(mem, auth, newTestLogger(&buf))

	if err := s.Login(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}

	s.Logout()
	if s.Token() != "" || s.Claims() != nil {
		t.Error("ログアウト後はトークンとクレームがクリアされるべき")
	}
	if mem.Get(storage.KeyToken) != "" {
		t.Error("ログアウト時は永続トークンを削除すべき")
	}

	// 2回目のログアウトも安全
	s.Logout()
	if s.Token() != "" {
		t.Error("ログアウトは冪等であるべき")
	}
}

func TestStore_RestoresPersistedToken(t *testing.T) {
	var buf bytes.Buffer
	mem := storage.NewMemoryStore()
	persisted := validToken("carol")
	mem.Set(storage.KeyToken, persisted)

	s := NewStore(mem, &fakeAuth{}, newTestLogger(&buf))

	if s.Token() != persisted {
		t.Error("永続化されたトークンを復元すべき")
	}
	claims := s.Claims()
	if claims == nil || claims.Username != "carol" {
		t.Errorf("復元されたクレーム = %+v, want carol", claims)
	}
}

func TestStore_DiscardsUndecodablePersistedToken(t *testing.T) {
	var buf bytes.Buffer
	mem := storage.NewMemoryStore()
	mem.Set(storage.KeyToken, "garbage-token")

	s := NewStore(mem, &fakeAuth{}, newTestLogger(&buf))

	if s.Token() != "" {
		t.Error("復号できない永続トークンは破棄して未認証で開始すべき")
	}
	if mem.Get(storage.KeyToken) != "" {
		t.Error("破棄した永続トークンはストアからも削除すべき")
	}
}

func TestStore_HandleBackendError_UnauthorizedLogsOut(t *testing.T) {
	var buf bytes.Buffer
	auth := &fakeAuth{signInToken: validToken("alice")}
	s := NewStore(storage.NewMemoryStore(), auth, newTestLogger(&buf))

	if err := s.Login(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}

	s.HandleBackendError(backend.NewServerReported("Unauthorized"))

	if s.Token() != "" {
		t.Error("Unauthorized エラーで自動ログアウトすべき")
	}
}

func TestStore_HandleBackendError_OtherErrorsKeepSession(t *testing.T) {
	var buf bytes.Buffer
	auth := &fakeAuth{signInToken: validToken("alice")}
	s := NewStore(storage.NewMemoryStore(), auth, newTestLogger(&buf))

	if err := s.Login(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}

	s.HandleBackendError(backend.NewServerReported("Gate not found"))
	s.HandleBackendError(nil)

	if s.Token() == "" {
		t.Error("認可と無関係なエラーではセッションを維持すべき")
	}
}

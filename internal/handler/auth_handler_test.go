package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lembair/portal/internal/model"
)

// fakeSession はテスト用のSessionService実装。
type fakeSession struct {
	token     string
	claims    *model.Claims
	loginErr  error
	regErr    error
	logoutRan bool
}

func (f *fakeSession) Login(ctx context.Context, email, password string) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.token = "tok"
	f.claims = &model.Claims{Username: "alice", Roles: model.RoleSet{model.RolePassenger: {}}}
	return nil
}

func (f *fakeSession) Register(ctx context.Context, email, username, password string) error {
	if f.regErr != nil {
		return f.regErr
	}
	return f.Login(ctx, email, password)
}

func (f *fakeSession) Logout() {
	f.logoutRan = true
	f.token = ""
	f.claims = nil
}

func (f *fakeSession) Token() string         { return f.token }
func (f *fakeSession) Claims() *model.Claims { return f.claims }

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorResponseBody {
	t.Helper()
	var body errorResponseBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("エラーレスポンスのデコードに失敗した: %v", err)
	}
	return body
}

func TestAuthHandler_Login_Success(t *testing.T) {
	h := NewAuthHandler(&fakeSession{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/portal/auth/login",
		strings.NewReader(`{"email":"a@example.com","password":"pw"}`))
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d, want 200", rec.Code)
	}

	var body sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗した: %v", err)
	}
	if !body.Authenticated {
		t.Error("ログイン成功後は Authenticated が真であるべき")
	}
	if body.Claims == nil || body.Claims.Username != "alice" {
		t.Errorf("Claims = %+v, want alice", body.Claims)
	}
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	h := NewAuthHandler(&fakeSession{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/portal/auth/login",
		strings.NewReader(`{"email":"a@example.com"}`))
	h.Login(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("ステータス = %d, want 422", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Code != model.ErrCodeInvalidQuery {
		t.Errorf("エラーコード = %s, want INVALID_QUERY", body.Code)
	}
}

func TestAuthHandler_Login_InvalidJSON(t *testing.T) {
	h := NewAuthHandler(&fakeSession{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/portal/auth/login",
		strings.NewReader(`{not json`))
	h.Login(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("ステータス = %d, want 422", rec.Code)
	}
}

func TestAuthHandler_Login_FailureMapsTo401(t *testing.T) {
	h := NewAuthHandler(&fakeSession{
		loginErr: model.NewLoginFailedError("Invalid credentials"),
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/portal/auth/login",
		strings.NewReader(`{"email":"a@example.com","password":"wrong"}`))
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ステータス = %d, want 401", rec.Code)
	}

	body := decodeErrorBody(t, rec)
	if body.Code != model.ErrCodeLoginFailed {
		t.Errorf("エラーコード = %s, want LOGIN_FAILED", body.Code)
	}
	if body.Message != "Invalid credentials" {
		t.Errorf("Message = %q, サーバーのメッセージをそのまま表示すべき", body.Message)
	}
	if body.Category != "auth" || body.Action == "" {
		t.Errorf("統一フォーマットに category/action が含まれるべき: %+v", body)
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	h := NewAuthHandler(&fakeSession{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/portal/auth/register",
		strings.NewReader(`{"email":"b@example.com","username":"bob","password":"pw"}`))
	h.Register(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d, want 200", rec.Code)
	}

	var body sessionResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Authenticated {
		t.Error("登録成功後はログイン済みであるべき")
	}
}

func TestAuthHandler_Register_MissingUsername(t *testing.T) {
	h := NewAuthHandler(&fakeSession{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/portal/auth/register",
		strings.NewReader(`{"email":"b@example.com","password":"pw"}`))
	h.Register(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("ステータス = %d, want 422", rec.Code)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	session := &fakeSession{token: "tok"}
	h := NewAuthHandler(session)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/portal/auth/logout", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("ステータス = %d, want 204", rec.Code)
	}
	if !session.logoutRan {
		t.Error("Logout がセッションストアに委譲されるべき")
	}
}

func TestAuthHandler_Session_Unauthenticated(t *testing.T) {
	h := NewAuthHandler(&fakeSession{})

	rec := httptest.NewRecorder()
	h.Session(rec, httptest.NewRequest(http.MethodGet, "/portal/auth/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d, want 200", rec.Code)
	}

	var body sessionResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Authenticated {
		t.Error("未認証時は Authenticated が偽であるべき")
	}
	if body.Claims != nil {
		t.Errorf("未認証時の Claims = %+v, want nil", body.Claims)
	}
}

// Package session はプロセス全体の認証状態（ベアラトークンとクレーム）を管理する。
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lembair/portal/internal/backend"
	"github.com/lembair/portal/internal/model"
	"github.com/lembair/portal/internal/storage"
	"github.com/lembair/portal/internal/token"
)

// AuthBackend はセッションストアが必要とするバックエンド操作のインターフェース。
type AuthBackend interface {
	// SignIn は認証情報をトークンに交換する。
	SignIn(ctx context.Context, email, password string) (string, error)
	// SignUp はアカウントを作成する。
	SignUp(ctx context.Context, email, username, password string) error
}

// LoginRecorder はログイン結果をメトリクスに記録する。
type LoginRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
}

// Store は「誰がログインしているか」の単一の権威。
// クレームは常にトークンから導出され、独立に保持されることはない。
// トークンの変更はユーザー起点のハンドラーからのみ行われる。
type Store struct {
	mu     sync.RWMutex
	token  string
	claims *model.Claims

	storage storage.Store
	auth    AuthBackend
	logger  *slog.Logger
	metrics LoginRecorder // nilの場合は記録しない
}

// NewStore はStoreを生成し、永続化されたトークンを1回だけ読み込む。
// 永続トークンが復号できない場合は破棄して未認証で開始する。
func NewStore(store storage.Store, auth AuthBackend, logger *slog.Logger) *Store {
	s := &Store{
		storage: store,
		auth:    auth,
		logger:  logger,
	}

	persisted := store.Get(storage.KeyToken)
	if persisted == "" {
		return s
	}

	claims, err := token.Decode(persisted)
	if err != nil {
		logger.Warn("永続化されたトークンの復号に失敗したため破棄します",
			slog.String("error", err.Error()),
		)
		if removeErr := store.Remove(storage.KeyToken); removeErr != nil {
			logger.Error("永続トークンの削除に失敗しました",
				slog.String("error", removeErr.Error()),
			)
		}
		return s
	}

	s.token = persisted
	s.claims = &claims
	logger.Info("永続化されたセッションを復元しました",
		slog.String("username", claims.Username),
	)
	return s
}

// SetAuth は認証操作の委譲先を設定する。
// バックエンドクライアントはトークンをセッションから読み、セッションは
// 認証操作をクライアントに委譲する相互参照のため、結線は2段階で行う。
func (s *Store) SetAuth(auth AuthBackend) {
	s.auth = auth
}

// SetMetrics はログイン結果の記録用レコーダーを設定する。
func (s *Store) SetMetrics(m LoginRecorder) {
	s.metrics = m
}

// Token は現在のベアラトークンを返す。未認証の場合は空文字列。
// backend.TokenSourceを実装する。
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Claims は現在のクレームを返す。未認証の場合はnil。
func (s *Store) Claims() *model.Claims {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return nil
	}
	c := *s.claims
	return &c
}

// Login は認証情報をバックエンドに送り、成功時にトークンとクレームを更新して
// 永続化する。失敗時は既存の状態に触れず、エラーをそのまま呼び出し元に返す。
func (s *Store) Login(ctx context.Context, email, password string) error {
	newToken, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		s.recordLoginFailure()
		s.logger.Warn("ログインに失敗しました",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return model.NewLoginFailedError(backend.ErrorMessage(err))
	}

	claims, err := token.Decode(newToken)
	if err != nil {
		s.recordLoginFailure()
		s.logger.Error("サーバーが返したトークンを復号できませんでした",
			slog.String("error", err.Error()),
		)
		return err
	}

	s.mu.Lock()
	s.token = newToken
	s.claims = &claims
	s.mu.Unlock()

	// 永続化は成功時のみ行う
	if err := s.storage.Set(storage.KeyToken, newToken); err != nil {
		s.logger.Error("トークンの永続化に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	s.recordLoginSuccess()
	s.logger.Info("ログインしました",
		slog.String("username", claims.Username),
	)
	return nil
}

// Register はアカウントを作成し、成功時に同じ認証情報でログインする。
// アカウント作成自体はセッションを確立しない。
func (s *Store) Register(ctx context.Context, email, username, password string) error {
	if err := s.auth.SignUp(ctx, email, username, password); err != nil {
		s.logger.Warn("アカウント登録に失敗しました",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return model.NewRegistrationFailedError(backend.ErrorMessage(err))
	}
	return s.Login(ctx, email, password)
}

// Logout はトークンとクレームをクリアし、永続トークンを削除する。
// すでにログアウト済みでも安全に呼べる（冪等）。
func (s *Store) Logout() {
	s.mu.Lock()
	wasAuthenticated := s.token != ""
	s.token = ""
	s.claims = nil
	s.mu.Unlock()

	if err := s.storage.Remove(storage.KeyToken); err != nil {
		s.logger.Error("永続トークンの削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	if wasAuthenticated {
		s.logger.Info("ログアウトしました")
	}
}

// HandleBackendError はバックエンドエラーを検査し、認可失敗を示す場合は
// 自動ログアウトする。全フェッチャーに一律で適用される。
func (s *Store) HandleBackendError(err error) {
	if err == nil {
		return
	}
	if backend.IsUnauthorized(err) {
		s.logger.Warn("バックエンドが認可失敗を報告したためセッションを破棄します",
			slog.String("error", err.Error()),
		)
		s.Logout()
	}
}

func (s *Store) recordLoginSuccess() {
	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}
}

func (s *Store) recordLoginFailure() {
	if s.metrics != nil {
		s.metrics.RecordLoginFailure()
	}
}

package handler

import (
	"context"
	"net/http"

	"github.com/lembair/portal/internal/model"
)

// SessionService は認証ハンドラーが必要とするセッションストアのインターフェース。
type SessionService interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, email, username, password string) error
	Logout()
	Token() string
	Claims() *model.Claims
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	sessions SessionService
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(sessions SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// loginRequest はPOST /portal/auth/loginのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerRequest はPOST /portal/auth/registerのリクエストボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionResponse はGET /portal/auth/sessionのレスポンス。
// 役割はビュー層がナビゲーションリンクの表示を出し分けるための
// 参考情報であり、認可そのものではない。
type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	Claims        *model.Claims `json:"claims,omitempty"`
}

// Login はログインを実行する。
// POST /portal/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		handleServiceError(w, model.NewInvalidQueryError("email and password are required"))
		return
	}

	if err := h.sessions.Login(r.Context(), req.Email, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeSession(w)
}

// Register はアカウント登録を実行する。
// 成功時はそのまま同じ認証情報でログインした状態になる。
// POST /portal/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		handleServiceError(w, model.NewInvalidQueryError("email, username and password are required"))
		return
	}

	if err := h.sessions.Register(r.Context(), req.Email, req.Username, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeSession(w)
}

// Logout はログアウトを実行する。冪等。
// POST /portal/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// Session は現在のセッション状態を返す。
// GET /portal/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter) {
	claims := h.sessions.Claims()
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: h.sessions.Token() != "",
		Claims:        claims,
	})
}

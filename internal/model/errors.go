package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, session, backend, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeLoginFailed         = "LOGIN_FAILED"
	ErrCodeRegistrationFailed  = "REGISTRATION_FAILED"
	ErrCodeTokenDecodeFailed   = "TOKEN_DECODE_FAILED"
	ErrCodeBackendError        = "BACKEND_ERROR"
	ErrCodeBackendUnreachable  = "BACKEND_UNREACHABLE"
	ErrCodeMalformedResponse   = "MALFORMED_RESPONSE"
	ErrCodeWindowInactive      = "REGISTRATION_WINDOW_INACTIVE"
	ErrCodeWindowAlreadyActive = "REGISTRATION_WINDOW_ACTIVE"
	ErrCodeInvalidQuery        = "INVALID_QUERY"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Please log in to access this page.",
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
// バックエンドがメッセージを返した場合はそれをそのまま表示する。
func NewLoginFailedError(reason string) *APIError {
	if reason == "" {
		reason = "Login failed"
	}
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  reason,
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewRegistrationFailedError はアカウント登録失敗エラーを生成する。
func NewRegistrationFailedError(reason string) *APIError {
	if reason == "" {
		reason = "Registration failed"
	}
	return &APIError{
		Code:     ErrCodeRegistrationFailed,
		Message:  reason,
		Category: "auth",
		Action:   "Check the registration form and try again.",
	}
}

// NewTokenDecodeError はトークン復号失敗エラーを生成する。
func NewTokenDecodeError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeTokenDecodeFailed,
		Message:  fmt.Sprintf("Malformed session token: %s", reason),
		Category: "auth",
		Action:   "Log in again to obtain a fresh session.",
	}
}

// NewBackendError はバックエンドが報告したアプリケーションエラーを生成する。
// レスポンスボディのmessageフィールドをそのまま保持する。
func NewBackendError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeBackendError,
		Message:  message,
		Category: "backend",
		Action:   "Check the request and try again.",
	}
}

// NewBackendUnreachableError はトランスポート層の失敗エラーを生成する。
func NewBackendUnreachableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnreachable,
		Message:  reason,
		Category: "backend",
		Action:   "Wait a moment and try again.",
	}
}

// NewMalformedResponseError はレスポンス形状の不正エラーを生成する。
func NewMalformedResponseError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedResponse,
		Message:  fmt.Sprintf("Unexpected response from the server: %s", reason),
		Category: "backend",
		Action:   "Wait a moment and try again.",
	}
}

// NewWindowInactiveError は登録セッション未開始の状態で登録操作を
// 行おうとした場合のローカル検証エラーを生成する。
func NewWindowInactiveError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeWindowInactive,
		Message:  fmt.Sprintf("Start a registration session to %s", action),
		Category: "validation",
		Action:   "Press Start Registration and retry.",
	}
}

// NewWindowAlreadyActiveError は登録セッションがすでに開始済みの場合の
// エラーを生成する。
func NewWindowAlreadyActiveError() *APIError {
	return &APIError{
		Code:     ErrCodeWindowAlreadyActive,
		Message:  "A registration session is already active.",
		Category: "validation",
		Action:   "Stop the current session before starting a new one.",
	}
}

// NewInvalidQueryError は無効なクエリパラメータのエラーを生成する。
func NewInvalidQueryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("Invalid query: %s", reason),
		Category: "validation",
		Action:   "Fix the filter parameters and retry.",
	}
}

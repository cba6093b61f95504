// Package handler はポータルのビュー層をHTTPサーフェスとして提供する。
// 各ビューはフェッチユニットの状態（status/data/error）と、溜まっていた
// 一時通知をまとめたビューモデルとして返す。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lembair/portal/internal/fetcher"
	"github.com/lembair/portal/internal/model"
	"github.com/lembair/portal/internal/notify"
)

// viewEnvelope はビューのレスポンス形状。
type viewEnvelope struct {
	Status        fetcher.Status        `json:"status"`
	Data          any                   `json:"data"`
	HasData       bool                  `json:"hasData"`
	Error         string                `json:"error,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
}

// NotificationDrainer はビューのレスポンスに同梱する通知の取り出し口。
type NotificationDrainer interface {
	Drain() []notify.Notification
}

// writeViewState はフェッチ状態をビューモデルとして書き込む。
func writeViewState[T any](w http.ResponseWriter, state fetcher.State[T], drainer NotificationDrainer) {
	envelope := viewEnvelope{
		Status:        state.Status,
		Data:          state.Data,
		HasData:       state.HasData,
		Error:         state.ErrorMessage,
		Notifications: drainer.Drain(),
	}
	writeJSON(w, http.StatusOK, envelope)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// errorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type errorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, errorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// mapAPIErrorToHTTPStatus はエラーコードをHTTPステータスに対応付ける。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeLoginFailed, model.ErrCodeRegistrationFailed, model.ErrCodeTokenDecodeFailed:
		return http.StatusUnauthorized
	case model.ErrCodeWindowInactive, model.ErrCodeWindowAlreadyActive, model.ErrCodeInvalidQuery:
		return http.StatusUnprocessableEntity
	case model.ErrCodeBackendUnreachable:
		return http.StatusBadGateway
	case model.ErrCodeBackendError, model.ErrCodeMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError はエラーを統一フォーマットで書き込む。
// APIError以外のエラーは内部サーバーエラーとして扱う。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	})
}

// decodeBody はリクエストボディをJSONとしてデコードする。
func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return model.NewInvalidQueryError("request body must be valid JSON")
	}
	return nil
}

package backend

import (
	"errors"
	"strings"

	"github.com/lembair/portal/internal/model"
)

// unauthorizedMarker はバックエンドが認可失敗を報告するときの
// メッセージに含まれる部分文字列。
const unauthorizedMarker = "Unauthorized"

// NewServerReported はサーバー報告エラー（ボディのmessage）をAPIErrorに変換する。
func NewServerReported(message string) error {
	return model.NewBackendError(message)
}

// NewBackendUnreachable はトランスポート層の失敗をAPIErrorに変換する。
func NewBackendUnreachable(err error) error {
	return model.NewBackendUnreachableError(err.Error())
}

// NewMalformed はレスポンス形状の不正をAPIErrorに変換する。
func NewMalformed(err error) error {
	return model.NewMalformedResponseError(err.Error())
}

// IsUnauthorized はエラーがバックエンドの認可失敗を示すかを返す。
// メッセージにUnauthorizedマーカーが含まれる場合に真となり、
// セッションストアの自動ログアウトのトリガーに使用される。
func IsUnauthorized(err error) bool {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(apiErr.Message, unauthorizedMarker)
}

// ErrorMessage はエラーから人間可読メッセージを取り出す。
// APIErrorの場合はMessageを、それ以外はError()を返す。
func ErrorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

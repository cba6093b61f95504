// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"encoding/json"
	"net/http"
)

// TokenReader はルートガードが必要とするセッションストアの部分集合。
type TokenReader interface {
	// Token は現在のベアラトークンを返す。未認証の場合は空文字列。
	Token() string
}

// interstitial は未認証時にビューの代わりに返すブロッキング画面。
// 取れるアクションはログイン画面への遷移の1つだけ。
type interstitial struct {
	Message   string `json:"message"`
	LoginPath string `json:"loginPath"`
}

// NewRouteGuard は保護ビューへのナビゲーションを検査するミドルウェアを返す。
// トークンが空の場合は保護コンテンツの代わりにインタースティシャルを返し、
// 空でない場合はそのまま委譲する。判定は同期的で、役割の検査は行わない
// （役割に応じたリンク表示はビュー層のUX上の配慮であり、認可ではない）。
func NewRouteGuard(tokens TokenReader, loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens.Token() == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(interstitial{
					Message:   "Please log in to access this page.",
					LoginPath: loginPath,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

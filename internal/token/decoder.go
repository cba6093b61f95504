// Package token はベアラトークンからクレームを復元する純粋なデコーダを提供する。
package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lembair/portal/internal/model"
)

// payload はトークンのJWTペイロード形状。
type payload struct {
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Roles    model.RoleSet `json:"roles"`
	jwt.RegisteredClaims
}

// Decode はトークン文字列からクレームを復元する。
// 署名検証は行わない: クレームはトークンに埋め込まれており、
// 検証はバックエンドの責務である（元実装のjwt-decodeと同じ扱い）。
// 不正な形式のトークンに対してはエラーを返し、部分的に埋まった
// クレームを返すことはない。同一トークンは常に同一クレームに復元される。
func Decode(tokenString string) (model.Claims, error) {
	if tokenString == "" {
		return model.Claims{}, model.NewTokenDecodeError("empty token")
	}

	var p payload
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &p); err != nil {
		return model.Claims{}, model.NewTokenDecodeError(err.Error())
	}

	if p.Username == "" {
		return model.Claims{}, model.NewTokenDecodeError("token payload is missing username")
	}

	roles := p.Roles
	if roles == nil {
		roles = make(model.RoleSet)
	}

	return model.Claims{
		Username: p.Username,
		Email:    p.Email,
		Roles:    roles,
	}, nil
}

// MustEncode はテスト用に未署名アルゴリズム相当のトークンを生成する。
// 本番コードからは使用しない。
func MustEncode(claims model.Claims) string {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": claims.Username,
		"email":    claims.Email,
		"roles":    claims.Roles,
	})
	signed, err := t.SignedString([]byte("test-secret"))
	if err != nil {
		panic(fmt.Sprintf("failed to encode token: %v", err))
	}
	return signed
}

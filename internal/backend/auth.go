package backend

import (
	"context"
	"net/http"

	"github.com/lembair/portal/internal/model"
)

// signInRequest はPOST /auth/signinのリクエストボディ。
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signInResponse はサインイン成功時のレスポンス。
// トークンはdataフィールドの下にネストされて返る。
type signInResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

// signUpRequest はPOST /auth/signupのリクエストボディ。
type signUpRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignIn は認証情報をトークンに交換する。
// 成功レスポンスにトークンが含まれない場合は形状エラーを返す。
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	var resp signInResponse
	err := c.do(ctx, http.MethodPost, "/auth/signin", nil, signInRequest{
		Email:    email,
		Password: password,
	}, &resp, false)
	if err != nil {
		return "", err
	}
	if resp.Data.Token == "" {
		return "", model.NewMalformedResponseError("signin response is missing data.token")
	}
	return resp.Data.Token, nil
}

// SignUp はアカウントを作成する。
// バックエンドは成功時に空ボディまたはmessageなしのボディを返す。
func (c *Client) SignUp(ctx context.Context, email, username, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/signup", nil, signUpRequest{
		Email:    email,
		Username: username,
		Password: password,
	}, nil, false)
}

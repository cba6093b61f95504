// Package backend はLembAir REST バックエンド（/api/v1）のクライアントを提供する。
// レスポンスの判定は境界で1回だけ行う: ボディにmessageフィールドが含まれる
// 場合はサーバー報告エラー、含まれない場合は成功ペイロードとして扱い、
// 下流のコードがアドホックにフィールドを再チェックすることはない。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// basePath はバックエンドAPIの共通プレフィックス。
const basePath = "/api/v1"

// TokenSource は認可付きリクエストに添付するベアラトークンの供給元。
// セッションストアが実装する。
type TokenSource interface {
	// Token は現在のベアラトークンを返す。未認証の場合は空文字列。
	Token() string
}

// StatusRecorder はバックエンドのHTTPステータスをメトリクスに記録する。
type StatusRecorder interface {
	RecordBackendStatus(statusCode int)
}

// Client はバックエンドAPIのクライアント。
type Client struct {
	httpClient  *http.Client
	baseURL     string
	tokens      TokenSource
	logger      *slog.Logger
	maxBodySize int64
	metrics     StatusRecorder // nilの場合は記録しない
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾スラッシュなしのオリジン（例: http://localhost:3000）。
func NewClient(httpClient *http.Client, baseURL string, tokens TokenSource, logger *slog.Logger, maxBodySize int64) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if maxBodySize <= 0 {
		maxBodySize = 5242880
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		tokens:      tokens,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// SetMetrics はステータス記録用のレコーダーを設定する。
func (c *Client) SetMetrics(m StatusRecorder) {
	c.metrics = m
}

// errorProbe はサーバー報告エラーの検出に使用する。
// バックエンドは2xxでもエラー時はボディにmessageを入れて返す。
type errorProbe struct {
	Message string `json:"message"`
}

// do はHTTPリクエストを1回実行し、レスポンスを判定する。
// outがnilでない場合、成功ペイロードをoutにデコードする。
// authorizedがtrueの場合、現在のベアラトークンをAuthorizationヘッダーに添付する。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any, authorized bool) error {
	reqURL := c.baseURL + basePath + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authorized && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("バックエンドへのリクエストに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return NewBackendUnreachable(err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordBackendStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return NewBackendUnreachable(err)
	}

	duration := time.Since(start)
	c.logger.Info("バックエンドリクエストが完了しました",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	// 空ボディは2xxであれば成功として扱う（削除系エンドポイントが返す）
	if len(bytes.TrimSpace(data)) == 0 {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return NewServerReported(fmt.Sprintf("server returned status %d", resp.StatusCode))
	}

	// 境界での1回判定: messageフィールドがあればサーバー報告エラー
	var probe errorProbe
	if err := json.Unmarshal(data, &probe); err == nil && probe.Message != "" {
		return NewServerReported(probe.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewServerReported(fmt.Sprintf("server returned status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return NewMalformed(err)
	}
	return nil
}

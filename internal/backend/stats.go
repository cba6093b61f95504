package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

// 統計エンドポイントのレスポンス形状は集計方法とともにバックエンド側で
// 変わりうるため、ビューにはそのまま引き渡す。

// StatsActiveUsers はアクティブユーザー統計を取得する。
func (c *Client) StatsActiveUsers(ctx context.Context) (json.RawMessage, error) {
	return c.stats(ctx, "/stats/active-users")
}

// StatsLuggagesPerMonth は月別手荷物統計を取得する。
func (c *Client) StatsLuggagesPerMonth(ctx context.Context) (json.RawMessage, error) {
	return c.stats(ctx, "/stats/luggages-per-month")
}

// StatsMonthlyFlightStatus は月別運航状態統計を取得する。
func (c *Client) StatsMonthlyFlightStatus(ctx context.Context) (json.RawMessage, error) {
	return c.stats(ctx, "/stats/monthly-flight-status")
}

// StatsTopAirports は上位空港統計を取得する。
func (c *Client) StatsTopAirports(ctx context.Context) (json.RawMessage, error) {
	return c.stats(ctx, "/stats/top-airports")
}

// StatsTopBuyings は購入上位統計を取得する。
func (c *Client) StatsTopBuyings(ctx context.Context) (json.RawMessage, error) {
	return c.stats(ctx, "/stats/top-buyings")
}

func (c *Client) stats(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &raw, true); err != nil {
		return nil, err
	}
	return raw, nil
}

package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/lembair/portal/internal/model"
)

// RawReport はゲートレポートのバックエンド形状。
// 便種別 → 日付 → レポートエントリ列 の入れ子マップで返る。
// 整形はreportパッケージが行う。
type RawReport map[string]map[string][]model.ReportEntry

// ListGates は全ゲートの一覧を取得する。
func (c *Client) ListGates(ctx context.Context) ([]model.Gate, error) {
	var gates []model.Gate
	if err := c.do(ctx, http.MethodGet, "/gates", nil, nil, &gates, true); err != nil {
		return nil, err
	}
	return gates, nil
}

// GetGate はゲートの詳細を取得する。
func (c *Client) GetGate(ctx context.Context, gateID int) (*model.Gate, error) {
	var gate model.Gate
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/gates/%d/", gateID), nil, nil, &gate, true); err != nil {
		return nil, err
	}
	return &gate, nil
}

// FreeGates は指定日時に空いているゲートの一覧を取得する。
func (c *Client) FreeGates(ctx context.Context, date time.Time) ([]model.Gate, error) {
	q := url.Values{}
	q.Set("date", date.UTC().Format(time.RFC3339))
	var gates []model.Gate
	if err := c.do(ctx, http.MethodGet, "/gates/details/free-gates", q, nil, &gates, true); err != nil {
		return nil, err
	}
	return gates, nil
}

// GatePassengers は全ゲートの搭乗者一覧を取得する。
func (c *Client) GatePassengers(ctx context.Context) ([]model.Passenger, error) {
	var passengers []model.Passenger
	if err := c.do(ctx, http.MethodGet, "/gates/details/passengers/", nil, nil, &passengers, true); err != nil {
		return nil, err
	}
	return passengers, nil
}

// GateReport は期間内の便と気象のレポートを取得する。
func (c *Client) GateReport(ctx context.Context, gateID int, from, to time.Time) (RawReport, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	var report RawReport
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/gates/%d/report", gateID), q, nil, &report, true); err != nil {
		return nil, err
	}
	return report, nil
}

// ReportSuggest はゲート再配置の提案時刻を取得する。
// バックエンドのパス綴りは sugest（原文ママ）。
func (c *Client) ReportSuggest(ctx context.Context, gateID int, from time.Time, hours int) ([]model.RearrangeSuggestion, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("hours", strconv.Itoa(hours))
	var suggestions []model.RearrangeSuggestion
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/gates/%d/report/sugest", gateID), q, nil, &suggestions, true); err != nil {
		return nil, err
	}
	return suggestions, nil
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lembair/portal/internal/fetcher"
	"github.com/lembair/portal/internal/notify"
)

// StatsBackend は統計ダッシュボードが必要とするバックエンド操作のインターフェース。
type StatsBackend interface {
	StatsActiveUsers(ctx context.Context) (json.RawMessage, error)
	StatsLuggagesPerMonth(ctx context.Context) (json.RawMessage, error)
	StatsMonthlyFlightStatus(ctx context.Context) (json.RawMessage, error)
	StatsTopAirports(ctx context.Context) (json.RawMessage, error)
	StatsTopBuyings(ctx context.Context) (json.RawMessage, error)
}

// StatsView は統計ダッシュボードビューのデータ。
// 各集計の形状はバックエンド都合で変わりうるため生のまま引き渡す。
type StatsView struct {
	ActiveUsers         json.RawMessage `json:"activeUsers"`
	LuggagesPerMonth    json.RawMessage `json:"luggagesPerMonth"`
	MonthlyFlightStatus json.RawMessage `json:"monthlyFlightStatus"`
	TopAirports         json.RawMessage `json:"topAirports"`
	TopBuyings          json.RawMessage `json:"topBuyings"`
}

// StatsHandler は統計ダッシュボードビューのHTTPハンドラー。
type StatsHandler struct {
	notifier *notify.Center

	viewFetcher *fetcher.Fetcher[*StatsView]
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(b StatsBackend, notifier *notify.Center, authSink fetcher.AuthErrorSink, logger *slog.Logger) *StatsHandler {
	h := &StatsHandler{notifier: notifier}

	h.viewFetcher = fetcher.New("stats", func(ctx context.Context) (*StatsView, error) {
		view := &StatsView{}
		loads := []struct {
			dst  *json.RawMessage
			load func(context.Context) (json.RawMessage, error)
		}{
			{&view.ActiveUsers, b.StatsActiveUsers},
			{&view.LuggagesPerMonth, b.StatsLuggagesPerMonth},
			{&view.MonthlyFlightStatus, b.StatsMonthlyFlightStatus},
			{&view.TopAirports, b.StatsTopAirports},
			{&view.TopBuyings, b.StatsTopBuyings},
		}
		for _, l := range loads {
			raw, err := l.load(ctx)
			if err != nil {
				return nil, err
			}
			*l.dst = raw
		}
		return view, nil
	}, notifier, logger)
	h.viewFetcher.SetAuthSink(authSink)

	return h
}

// SetMetrics はフェッチ結果のメトリクスレコーダーを設定する。
func (h *StatsHandler) SetMetrics(m fetcher.FetchRecorder) {
	h.viewFetcher.SetMetrics(m)
}

// View は統計ダッシュボードビューを返す。
// GET /portal/views/stats
func (h *StatsHandler) View(w http.ResponseWriter, r *http.Request) {
	state := h.viewFetcher.Trigger(r.Context())
	writeViewState(w, state, h.notifier)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lembair/portal/internal/fetcher"
	"github.com/lembair/portal/internal/model"
	"github.com/lembair/portal/internal/notify"
)

// WeatherBackend は気象ビューが必要とするバックエンド操作のインターフェース。
type WeatherBackend interface {
	WeatherForecast(ctx context.Context, from, to time.Time) (*model.Forecast, error)
}

// WeatherHandler は気象予報ビューのHTTPハンドラー。認可不要の公開ビュー。
type WeatherHandler struct {
	notifier *notify.Center

	mu   sync.Mutex
	from time.Time
	to   time.Time

	viewFetcher *fetcher.Fetcher[*model.Forecast]
}

// NewWeatherHandler はWeatherHandlerを生成する。
func NewWeatherHandler(b WeatherBackend, notifier *notify.Center, logger *slog.Logger) *WeatherHandler {
	h := &WeatherHandler{notifier: notifier}

	h.viewFetcher = fetcher.New("weather", func(ctx context.Context) (*model.Forecast, error) {
		h.mu.Lock()
		from, to := h.from, h.to
		h.mu.Unlock()
		return b.WeatherForecast(ctx, from, to)
	}, notifier, logger)

	return h
}

// SetMetrics はフェッチ結果のメトリクスレコーダーを設定する。
func (h *WeatherHandler) SetMetrics(m fetcher.FetchRecorder) {
	h.viewFetcher.SetMetrics(m)
}

// View は指定時刻の気象予報ビューを返す。
// from/toの省略時は現在時刻の予報を返す。
// GET /portal/views/weather
func (h *WeatherHandler) View(w http.ResponseWriter, r *http.Request) {
	from := time.Now()
	to := from
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			handleServiceError(w, model.NewInvalidQueryError("from must be an RFC 3339 timestamp"))
			return
		}
		from = parsed
		to = parsed
	}
	if raw := q.Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			handleServiceError(w, model.NewInvalidQueryError("to must be an RFC 3339 timestamp"))
			return
		}
		to = parsed
	}

	h.mu.Lock()
	h.from = from
	h.to = to
	h.mu.Unlock()

	state := h.viewFetcher.Trigger(r.Context())
	writeViewState(w, state, h.notifier)
}

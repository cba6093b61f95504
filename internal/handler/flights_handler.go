package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lembair/portal/internal/fetcher"
	"github.com/lembair/portal/internal/model"
	"github.com/lembair/portal/internal/notify"
)

// FlightsBackend は便ビューが必要とするバックエンド操作のインターフェース。
type FlightsBackend interface {
	ListFlights(ctx context.Context, filter model.FlightFilter) ([]model.Flight, error)
	GetFlight(ctx context.Context, flightID int) (*model.FlightDetail, error)
	UpdateFlightGate(ctx context.Context, flightID, gateID int) error
	UpdateFlightScheduleTime(ctx context.Context, flightID int, scheduleTime time.Time) error
	UpdateFlightStatus(ctx context.Context, flightID int, status model.FlightStatus) error
}

// FlightsHandler は便一覧・便詳細ビューのHTTPハンドラー。
// 一覧と詳細にそれぞれ1つのフェッチユニットを持ち、直近のフィルタ条件と
// 対象便IDを保持する。フェッチユニットのローダーは常に最新の条件を読むため、
// 並行トリガー時も古い条件の結果が勝つことはない。
type FlightsHandler struct {
	backend  FlightsBackend
	notifier *notify.Center
	authSink fetcher.AuthErrorSink
	logger   *slog.Logger

	mu       sync.Mutex
	filter   model.FlightFilter
	detailID int

	listFetcher   *fetcher.Fetcher[[]model.Flight]
	detailFetcher *fetcher.Fetcher[*model.FlightDetail]
}

// NewFlightsHandler はFlightsHandlerを生成する。
func NewFlightsHandler(b FlightsBackend, notifier *notify.Center, authSink fetcher.AuthErrorSink, logger *slog.Logger) *FlightsHandler {
	h := &FlightsHandler{
		backend:  b,
		notifier: notifier,
		authSink: authSink,
		logger:   logger,
	}

	h.listFetcher = fetcher.New("flights", func(ctx context.Context) ([]model.Flight, error) {
		h.mu.Lock()
		filter := h.filter
		h.mu.Unlock()
		return b.ListFlights(ctx, filter)
	}, notifier, logger)
	h.listFetcher.SetAuthSink(authSink)

	h.detailFetcher = fetcher.New("flight_detail", func(ctx context.Context) (*model.FlightDetail, error) {
		h.mu.Lock()
		flightID := h.detailID
		h.mu.Unlock()
		return b.GetFlight(ctx, flightID)
	}, notifier, logger)
	h.detailFetcher.SetAuthSink(authSink)

	return h
}

// SetMetrics はフェッチ結果のメトリクスレコーダーを設定する。
func (h *FlightsHandler) SetMetrics(m fetcher.FetchRecorder) {
	h.listFetcher.SetMetrics(m)
	h.detailFetcher.SetMetrics(m)
}

// parseFlightFilter はクエリ文字列からフィルタ条件を組み立てる。
// 未指定のパラメータはゼロ値のまま残す。
func parseFlightFilter(r *http.Request) (model.FlightFilter, error) {
	q := r.URL.Query()
	filter := model.FlightFilter{
		Type:       model.FlightType(q.Get("type")),
		Status:     model.FlightStatus(q.Get("status")),
		SearchName: q.Get("searchName"),
	}

	if raw := q.Get("scheduleTimeFrom"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return model.FlightFilter{}, model.NewInvalidQueryError("scheduleTimeFrom must be an RFC 3339 timestamp")
		}
		filter.ScheduleTimeFrom = t
	}
	if raw := q.Get("scheduleTimeTo"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return model.FlightFilter{}, model.NewInvalidQueryError("scheduleTimeTo must be an RFC 3339 timestamp")
		}
		filter.ScheduleTimeTo = t
	}
	if raw := q.Get("gateId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return model.FlightFilter{}, model.NewInvalidQueryError("gateId must be an integer")
		}
		filter.GateID = id
	}

	return filter, nil
}

// pathID はURLパラメータを整数IDとして取り出す。
func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, model.NewInvalidQueryError(name + " must be an integer")
	}
	return id, nil
}

// List は便一覧ビューを返す。
// GET /portal/views/flights
func (h *FlightsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFlightFilter(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.mu.Lock()
	h.filter = filter
	h.mu.Unlock()

	state := h.listFetcher.Trigger(r.Context())
	writeViewState(w, state, h.notifier)
}

// Detail は便詳細ビューを返す。
// GET /portal/views/flights/{flightID}
func (h *FlightsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	flightID, err := pathID(r, "flightID")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	state := h.triggerDetail(r.Context(), flightID)
	writeViewState(w, state, h.notifier)
}

// UpdateGate は便のゲートを変更し、更新後の便詳細ビューを返す。
// PUT /portal/views/flights/{flightID}/gate
func (h *FlightsHandler) UpdateGate(w http.ResponseWriter, r *http.Request) {
	flightID, err := pathID(r, "flightID")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req struct {
		GateID int `json:"gateId"`
	}
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.GateID <= 0 {
		handleServiceError(w, model.NewInvalidQueryError("gateId is required"))
		return
	}

	if err := h.backend.UpdateFlightGate(r.Context(), flightID, req.GateID); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	h.notifier.Info("Flight gate updated.")
	writeViewState(w, h.triggerDetail(r.Context(), flightID), h.notifier)
}

// UpdateScheduleTime は便の予定時刻を変更し、更新後の便詳細ビューを返す。
// PUT /portal/views/flights/{flightID}/schedule-time
func (h *FlightsHandler) UpdateScheduleTime(w http.ResponseWriter, r *http.Request) {
	flightID, err := pathID(r, "flightID")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req struct {
		ScheduleTime string `json:"scheduleTime"`
	}
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	scheduleTime, err := time.Parse(time.RFC3339, req.ScheduleTime)
	if err != nil {
		handleServiceError(w, model.NewInvalidQueryError("scheduleTime must be an RFC 3339 timestamp"))
		return
	}

	if err := h.backend.UpdateFlightScheduleTime(r.Context(), flightID, scheduleTime); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	h.notifier.Info("Flight schedule time updated.")
	writeViewState(w, h.triggerDetail(r.Context(), flightID), h.notifier)
}

// UpdateStatus は便の運航状態を変更し、更新後の便詳細ビューを返す。
// PUT /portal/views/flights/{flightID}/status
func (h *FlightsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	flightID, err := pathID(r, "flightID")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req struct {
		Status model.FlightStatus `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	switch req.Status {
	case model.FlightStatusScheduled, model.FlightStatusDelayed, model.FlightStatusLanded, model.FlightStatusCancelled:
	default:
		handleServiceError(w, model.NewInvalidQueryError("status must be one of scheduled, delayed, landed, cancelled"))
		return
	}

	if err := h.backend.UpdateFlightStatus(r.Context(), flightID, req.Status); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	h.notifier.Info("Flight status updated.")
	writeViewState(w, h.triggerDetail(r.Context(), flightID), h.notifier)
}

// triggerDetail は対象便を差し替えて詳細フェッチを実行する。
func (h *FlightsHandler) triggerDetail(ctx context.Context, flightID int) fetcher.State[*model.FlightDetail] {
	h.mu.Lock()
	h.detailID = flightID
	h.mu.Unlock()
	return h.detailFetcher.Trigger(ctx)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/lembair/portal/internal/backend"
	"github.com/lembair/portal/internal/fetcher"
	"github.com/lembair/portal/internal/model"
	"github.com/lembair/portal/internal/notify"
	"github.com/lembair/portal/internal/report"
)

// GatesBackend はゲートビューが必要とするバックエンド操作のインターフェース。
type GatesBackend interface {
	ListGates(ctx context.Context) ([]model.Gate, error)
	GetGate(ctx context.Context, gateID int) (*model.Gate, error)
	FreeGates(ctx context.Context, date time.Time) ([]model.Gate, error)
	GatePassengers(ctx context.Context) ([]model.Passenger, error)
	GateReport(ctx context.Context, gateID int, from, to time.Time) (backend.RawReport, error)
	ReportSuggest(ctx context.Context, gateID int, from time.Time, hours int) ([]model.RearrangeSuggestion, error)
}

// GateReportView はゲートレポートビューのデータ。
// 整形済みレポートと再配置の提案時刻をまとめる。
type GateReportView struct {
	Report      report.Parsed               `json:"report"`
	Suggestions []model.RearrangeSuggestion `json:"suggestions"`
}

// reportQuery はレポートビューのフェッチ条件。
type reportQuery struct {
	gateID int
	from   time.Time
	to     time.Time
	hours  int
}

// GatesHandler はゲート関連ビューのHTTPハンドラー。
type GatesHandler struct {
	backend  GatesBackend
	notifier *notify.Center
	logger   *slog.Logger

	mu          sync.Mutex
	detailID    int
	freeGatesAt time.Time
	reportQuery reportQuery

	listFetcher       *fetcher.Fetcher[[]model.Gate]
	detailFetcher     *fetcher.Fetcher[*model.Gate]
	freeFetcher       *fetcher.Fetcher[[]model.Gate]
	passengersFetcher *fetcher.Fetcher[[]model.Passenger]
	reportFetcher     *fetcher.Fetcher[*GateReportView]
}

// NewGatesHandler はGatesHandlerを生成する。
func NewGatesHandler(b GatesBackend, notifier *notify.Center, authSink fetcher.AuthErrorSink, logger *slog.Logger) *GatesHandler {
	h := &GatesHandler{
		backend:  b,
		notifier: notifier,
		logger:   logger,
	}

	h.listFetcher = fetcher.New("gates", func(ctx context.Context) ([]model.Gate, error) {
		return b.ListGates(ctx)
	}, notifier, logger)

	h.detailFetcher = fetcher.New("gate_detail", func(ctx context.Context) (*model.Gate, error) {
		h.mu.Lock()
		gateID := h.detailID
		h.mu.Unlock()
		return b.GetGate(ctx, gateID)
	}, notifier, logger)

	h.freeFetcher = fetcher.New("free_gates", func(ctx context.Context) ([]model.Gate, error) {
		h.mu.Lock()
		date := h.freeGatesAt
		h.mu.Unlock()
		return b.FreeGates(ctx, date)
	}, notifier, logger)

	h.passengersFetcher = fetcher.New("gate_passengers", func(ctx context.Context) ([]model.Passenger, error) {
		return b.GatePassengers(ctx)
	}, notifier, logger)

	h.reportFetcher = fetcher.New("gate_report", h.loadReport, notifier, logger)

	for _, setSink := range []func(fetcher.AuthErrorSink){
		h.listFetcher.SetAuthSink,
		h.detailFetcher.SetAuthSink,
		h.freeFetcher.SetAuthSink,
		h.passengersFetcher.SetAuthSink,
		h.reportFetcher.SetAuthSink,
	} {
		setSink(authSink)
	}

	return h
}

// SetMetrics はフェッチ結果のメトリクスレコーダーを設定する。
func (h *GatesHandler) SetMetrics(m fetcher.FetchRecorder) {
	h.listFetcher.SetMetrics(m)
	h.detailFetcher.SetMetrics(m)
	h.freeFetcher.SetMetrics(m)
	h.passengersFetcher.SetMetrics(m)
	h.reportFetcher.SetMetrics(m)
}

// loadReport はレポートと提案時刻をまとめて取得し、ビュー向けに整形する。
// 提案時刻の取得失敗はレポート全体の失敗にはしない。
func (h *GatesHandler) loadReport(ctx context.Context) (*GateReportView, error) {
	h.mu.Lock()
	q := h.reportQuery
	h.mu.Unlock()

	raw, err := h.backend.GateReport(ctx, q.gateID, q.from, q.to)
	if err != nil {
		return nil, err
	}

	view := &GateReportView{Report: report.Parse(raw)}

	suggestions, err := h.backend.ReportSuggest(ctx, q.gateID, q.from, q.hours)
	if err != nil {
		h.notifier.Warn("Rearrange suggestions are unavailable.")
		h.logger.Warn("再配置提案の取得に失敗しました",
			slog.Int("gate_id", q.gateID),
			slog.String("error", backend.ErrorMessage(err)),
		)
		return view, nil
	}
	view.Suggestions = suggestions

	return view, nil
}

// List はゲート一覧ビューを返す。
// GET /portal/views/gates
func (h *GatesHandler) List(w http.ResponseWriter, r *http.Request) {
	state := h.listFetcher.Trigger(r.Context())
	writeViewState(w, state, h.notifier)
}

// Detail はゲート詳細ビューを返す。
// GET /portal/views/gates/{gateID}
func (h *GatesHandler) Detail(w http.ResponseWriter, r *http.Request) {
	gateID, err := pathID(r, "gateID")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.mu.Lock()
	h.detailID = gateID
	h.mu.Unlock()

	state := h.detailFetcher.Trigger(r.Context())
	writeViewState(w, state, h.notifier)
}

// Free は指定日時に空いているゲートの一覧ビューを返す。
// dateの省略時は現在時刻を使う。
// GET /portal/views/gates/free
func (h *GatesHandler) Free(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			handleServiceError(w, model.NewInvalidQueryError("date must be an RFC 3339 timestamp"))
			return
		}
		date = parsed
	}

	h.mu.Lock()
	h.freeGatesAt = date
	h.mu.Unlock()

	state := h.freeFetcher.Trigger(r.Context())
	writeViewState(w, state, h.notifier)
}

// Passengers は全ゲートの搭乗者一覧ビューを返す。
// GET /portal/views/gates/passengers
func (h *GatesHandler) Passengers(w http.ResponseWriter, r *http.Request) {
	state := h.passengersFetcher.Trigger(r.Context())
	writeViewState(w, state, h.notifier)
}

// Report はゲートレポートビューを返す。
// 期間はfrom/toで指定し、省略時はfrom=現在、to=24時間後とする。
// 提案時刻の探索幅hoursの既定値は24。
// GET /portal/views/gates/{gateID}/report
func (h *GatesHandler) Report(w http.ResponseWriter, r *http.Request) {
	gateID, err := pathID(r, "gateID")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	q := reportQuery{
		gateID: gateID,
		from:   time.Now(),
		hours:  24,
	}
	query := r.URL.Query()
	if raw := query.Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			handleServiceError(w, model.NewInvalidQueryError("from must be an RFC 3339 timestamp"))
			return
		}
		q.from = parsed
	}
	q.to = q.from.Add(24 * time.Hour)
	if raw := query.Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			handleServiceError(w, model.NewInvalidQueryError("to must be an RFC 3339 timestamp"))
			return
		}
		q.to = parsed
	}
	if raw := query.Get("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			handleServiceError(w, model.NewInvalidQueryError("hours must be a positive integer"))
			return
		}
		q.hours = hours
	}

	h.mu.Lock()
	h.reportQuery = q
	h.mu.Unlock()

	state := h.reportFetcher.Trigger(r.Context())
	writeViewState(w, state, h.notifier)
}

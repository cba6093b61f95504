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
	"github.com/lembair/portal/internal/storage"
	"github.com/lembair/portal/internal/timer"
)

// RegistrationBackend はゲート登録業務が必要とするバックエンド操作のインターフェース。
type RegistrationBackend interface {
	GetFlight(ctx context.Context, flightID int) (*model.FlightDetail, error)
	RegisteredTickets(ctx context.Context, gateID int) ([]model.RegisteredTicket, error)
	RegisterTicket(ctx context.Context, gateID int, req backend.RegisterTicketRequest) error
	RemoveRegisteredTicket(ctx context.Context, gateID, registeredTicketID int) error
	RegisterLuggage(ctx context.Context, gateID int, req backend.RegisterLuggageRequest) error
	UpdateLuggage(ctx context.Context, gateID, luggageID int, req backend.UpdateLuggageRequest) error
	RemoveLuggage(ctx context.Context, gateID, luggageID int) error
	LuggageWeight(ctx context.Context, gateID, flightID int) (float64, error)
	StartRegistration(ctx context.Context, gateID, flightID int, startedAt time.Time) (*backend.StartRegistrationResponse, error)
	CloseRegistration(ctx context.Context, gateID int, registrationID string, closedAt time.Time) error
}

// RegistrationView はゲート登録ビューのデータ。
// 対象便の詳細・登録済みチケット一覧・タイマーの状態をまとめる。
type RegistrationView struct {
	Flight            *model.FlightDetail      `json:"flight"`
	RegisteredTickets []model.RegisteredTicket `json:"registeredTickets"`
	Timer             timer.Snapshot           `json:"timer"`
}

// RegistrationHandler はゲート登録業務ビューのHTTPハンドラー。
// 登録セッションのカウントダウンタイマーを所有し、搭乗登録・手荷物の
// 各変更操作はウィンドウが開いている間のみ受け付ける。
type RegistrationHandler struct {
	backend  RegistrationBackend
	timer    *timer.Timer
	notifier *notify.Center
	authSink fetcher.AuthErrorSink
	logger   *slog.Logger

	mu       sync.Mutex
	gateID   int
	flightID int

	viewFetcher *fetcher.Fetcher[*RegistrationView]
}

// NewRegistrationHandler はRegistrationHandlerを生成する。
// タイマーの締切はstoreに永続化され、プロセス再起動をまたいで復元される。
func NewRegistrationHandler(b RegistrationBackend, store storage.Store, window, tick time.Duration, notifier *notify.Center, authSink fetcher.AuthErrorSink, logger *slog.Logger) *RegistrationHandler {
	h := &RegistrationHandler{
		backend:  b,
		notifier: notifier,
		authSink: authSink,
		logger:   logger,
	}

	h.timer = timer.New(store, window, tick, timer.Callbacks{
		OnStart: func(ctx context.Context, startedAt time.Time) (string, error) {
			h.mu.Lock()
			gateID, flightID := h.gateID, h.flightID
			h.mu.Unlock()

			resp, err := b.StartRegistration(ctx, gateID, flightID, startedAt)
			if err != nil {
				return "", err
			}
			return strconv.Itoa(resp.ID), nil
		},
		OnStop: func(ctx context.Context, registrationID string, closedAt time.Time) error {
			h.mu.Lock()
			gateID := h.gateID
			h.mu.Unlock()

			return b.CloseRegistration(ctx, gateID, registrationID, closedAt)
		},
	}, notifier, logger)

	h.viewFetcher = fetcher.New("registration", func(ctx context.Context) (*RegistrationView, error) {
		h.mu.Lock()
		gateID, flightID := h.gateID, h.flightID
		h.mu.Unlock()

		flight, err := b.GetFlight(ctx, flightID)
		if err != nil {
			return nil, err
		}
		registered, err := b.RegisteredTickets(ctx, gateID)
		if err != nil {
			return nil, err
		}
		return &RegistrationView{
			Flight:            flight,
			RegisteredTickets: registered,
			Timer:             h.timer.Snapshot(),
		}, nil
	}, notifier, logger)
	h.viewFetcher.SetAuthSink(authSink)

	return h
}

// SetMetrics はフェッチ結果のメトリクスレコーダーを設定する。
func (h *RegistrationHandler) SetMetrics(m fetcher.FetchRecorder) {
	h.viewFetcher.SetMetrics(m)
}

// Timer は所有するカウントダウンタイマーを返す。
func (h *RegistrationHandler) Timer() *timer.Timer {
	return h.timer
}

// View はゲート登録ビューを返す。
// GET /portal/views/registration/{gateID}/{flightID}
func (h *RegistrationHandler) View(w http.ResponseWriter, r *http.Request) {
	gateID, flightID, err := h.pathTarget(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeViewState(w, h.triggerView(r.Context(), gateID, flightID), h.notifier)
}

// TimerSnapshot はタイマーの現在の状態を返す。ポーリング用。
// GET /portal/views/registration/timer
func (h *RegistrationHandler) TimerSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.timer.Snapshot())
}

// StartTimer は登録セッションウィンドウを開く。
// POST /portal/views/registration/{gateID}/{flightID}/timer/start
func (h *RegistrationHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	gateID, flightID, err := h.pathTarget(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.mu.Lock()
	h.gateID = gateID
	h.flightID = flightID
	h.mu.Unlock()

	if err := h.timer.Start(r.Context()); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.timer.Snapshot())
}

// StopTimer は登録セッションウィンドウを明示的に閉じる。冪等。
// POST /portal/views/registration/timer/stop
func (h *RegistrationHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	if err := h.timer.Stop(r.Context()); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.timer.Snapshot())
}

// RegisterTicket はチケットをゲートに搭乗登録する。
// POST /portal/views/registration/{gateID}/{flightID}/tickets
func (h *RegistrationHandler) RegisterTicket(w http.ResponseWriter, r *http.Request) {
	gateID, flightID, err := h.pathTarget(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !h.timer.Active() {
		handleServiceError(w, model.NewWindowInactiveError("register a ticket"))
		return
	}

	var req backend.RegisterTicketRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.TicketID <= 0 || req.PassengerID <= 0 {
		handleServiceError(w, model.NewInvalidQueryError("ticketId and passengerId are required"))
		return
	}

	if err := h.backend.RegisterTicket(r.Context(), gateID, req); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	h.notifier.Info("Ticket registered.")
	writeViewState(w, h.triggerView(r.Context(), gateID, flightID), h.notifier)
}

// RemoveTicket は搭乗登録を取り消す。
// DELETE /portal/views/registration/{gateID}/{flightID}/tickets/{registeredTicketID}
func (h *RegistrationHandler) RemoveTicket(w http.ResponseWriter, r *http.Request) {
	gateID, flightID, err := h.pathTarget(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	registeredTicketID, err := pathID(r, "registeredTicketID")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !h.timer.Active() {
		handleServiceError(w, model.NewWindowInactiveError("remove a registered ticket"))
		return
	}

	if err := h.backend.RemoveRegisteredTicket(r.Context(), gateID, registeredTicketID); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	h.notifier.Info("Ticket registration removed.")
	writeViewState(w, h.triggerView(r.Context(), gateID, flightID), h.notifier)
}

// RegisterLuggage は手荷物を登録する。
// POST /portal/views/registration/{gateID}/{flightID}/luggage
func (h *RegistrationHandler) RegisterLuggage(w http.ResponseWriter, r *http.Request) {
	gateID, flightID, err := h.pathTarget(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !h.timer.Active() {
		handleServiceError(w, model.NewWindowInactiveError("register luggage"))
		return
	}

	var req backend.RegisterLuggageRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Weight == "" || req.TicketID <= 0 || req.PassengerID <= 0 {
		handleServiceError(w, model.NewInvalidQueryError("weight, ticketId and passengerId are required"))
		return
	}
	if req.Status == "" {
		req.Status = model.LuggageStatusPending
	}

	if err := h.backend.RegisterLuggage(r.Context(), gateID, req); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	h.notifier.Info("Luggage registered.")
	writeViewState(w, h.triggerView(r.Context(), gateID, flightID), h.notifier)
}

// UpdateLuggage は登録済み手荷物の重量・状態を更新する。
// PUT /portal/views/registration/{gateID}/{flightID}/luggage/{luggageID}
func (h *RegistrationHandler) UpdateLuggage(w http.ResponseWriter, r *http.Request) {
	gateID, flightID, err := h.pathTarget(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	luggageID, err := pathID(r, "luggageID")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !h.timer.Active() {
		handleServiceError(w, model.NewWindowInactiveError("update luggage"))
		return
	}

	var req backend.UpdateLuggageRequest
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if req.Weight == "" {
		handleServiceError(w, model.NewInvalidQueryError("weight is required"))
		return
	}

	if err := h.backend.UpdateLuggage(r.Context(), gateID, luggageID, req); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	h.notifier.Info("Luggage updated.")
	writeViewState(w, h.triggerView(r.Context(), gateID, flightID), h.notifier)
}

// RemoveLuggage は登録済み手荷物を削除する。
// DELETE /portal/views/registration/{gateID}/{flightID}/luggage/{luggageID}
func (h *RegistrationHandler) RemoveLuggage(w http.ResponseWriter, r *http.Request) {
	gateID, flightID, err := h.pathTarget(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	luggageID, err := pathID(r, "luggageID")
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !h.timer.Active() {
		handleServiceError(w, model.NewWindowInactiveError("remove luggage"))
		return
	}

	if err := h.backend.RemoveLuggage(r.Context(), gateID, luggageID); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	h.notifier.Info("Luggage removed.")
	writeViewState(w, h.triggerView(r.Context(), gateID, flightID), h.notifier)
}

// LuggageWeight は便の手荷物総重量を返す。
// GET /portal/views/registration/{gateID}/{flightID}/luggage-weight
func (h *RegistrationHandler) LuggageWeight(w http.ResponseWriter, r *http.Request) {
	gateID, flightID, err := h.pathTarget(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	weight, err := h.backend.LuggageWeight(r.Context(), gateID, flightID)
	if err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"weight": weight})
}

// pathTarget はURLパラメータから対象のゲートIDと便IDを取り出す。
func (h *RegistrationHandler) pathTarget(r *http.Request) (gateID, flightID int, err error) {
	gateID, err = pathID(r, "gateID")
	if err != nil {
		return 0, 0, err
	}
	flightID, err = pathID(r, "flightID")
	if err != nil {
		return 0, 0, err
	}
	return gateID, flightID, nil
}

// triggerView は対象を差し替えてビューのフェッチを実行する。
func (h *RegistrationHandler) triggerView(ctx context.Context, gateID, flightID int) fetcher.State[*RegistrationView] {
	h.mu.Lock()
	h.gateID = gateID
	h.flightID = flightID
	h.mu.Unlock()
	return h.viewFetcher.Trigger(ctx)
}

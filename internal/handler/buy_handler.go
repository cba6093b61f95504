package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/lembair/portal/internal/fetcher"
	"github.com/lembair/portal/internal/model"
	"github.com/lembair/portal/internal/notify"
)

// BuyBackend はチケット購入ビューが必要とするバックエンド操作のインターフェース。
type BuyBackend interface {
	GetFlight(ctx context.Context, flightID int) (*model.FlightDetail, error)
	AvailableSeats(ctx context.Context, flightID int) (*model.SeatAvailability, error)
	TicketAvailability(ctx context.Context) (*model.SeatAvailability, error)
	BuyTicket(ctx context.Context, orders []model.TicketOrder) error
}

// BuyView はチケット購入ビューのデータ。
// 便の詳細（座席クラスごとの価格を含む）・対象便の座席空き状況・
// 全体の空き状況をまとめる。
type BuyView struct {
	Flight              *model.FlightDetail     `json:"flight"`
	Availability        *model.SeatAvailability `json:"availability"`
	OverallAvailability *model.SeatAvailability `json:"overallAvailability"`
}

// buyOrderRequest は購入リクエストの1注文分。
// 座席クラスの単価は購入ビューで提示した価格をそのまま送り返す契約。
type buyOrderRequest struct {
	SeatClass model.SeatClass `json:"seatClass"`
	Price     float64         `json:"price"`
	Count     int             `json:"count"`
}

// BuyHandler はチケット購入ビューのHTTPハンドラー。
type BuyHandler struct {
	backend  BuyBackend
	notifier *notify.Center
	authSink fetcher.AuthErrorSink
	logger   *slog.Logger

	mu       sync.Mutex
	flightID int

	viewFetcher *fetcher.Fetcher[*BuyView]
}

// NewBuyHandler はBuyHandlerを生成する。
func NewBuyHandler(b BuyBackend, notifier *notify.Center, authSink fetcher.AuthErrorSink, logger *slog.Logger) *BuyHandler {
	h := &BuyHandler{
		backend:  b,
		notifier: notifier,
		authSink: authSink,
		logger:   logger,
	}

	h.viewFetcher = fetcher.New("buy", func(ctx context.Context) (*BuyView, error) {
		h.mu.Lock()
		flightID := h.flightID
		h.mu.Unlock()

		flight, err := b.GetFlight(ctx, flightID)
		if err != nil {
			return nil, err
		}
		availability, err := b.AvailableSeats(ctx, flightID)
		if err != nil {
			return nil, err
		}
		overall, err := b.TicketAvailability(ctx)
		if err != nil {
			return nil, err
		}
		return &BuyView{
			Flight:              flight,
			Availability:        availability,
			OverallAvailability: overall,
		}, nil
	}, notifier, logger)
	h.viewFetcher.SetAuthSink(authSink)

	return h
}

// SetMetrics はフェッチ結果のメトリクスレコーダーを設定する。
func (h *BuyHandler) SetMetrics(m fetcher.FetchRecorder) {
	h.viewFetcher.SetMetrics(m)
}

// View はチケット購入ビューを返す。
// GET /portal/views/buy/{flightID}
func (h *BuyHandler) View(w http.ResponseWriter, r *http.Request) {
	flightID, err := pathID(r, "flightID")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeViewState(w, h.triggerView(r.Context(), flightID), h.notifier)
}

// Buy は1枚以上のチケットをまとめて購入し、更新後の購入ビューを返す。
// 注文の便IDはパスの便IDで上書きする。
// POST /portal/views/buy/{flightID}
func (h *BuyHandler) Buy(w http.ResponseWriter, r *http.Request) {
	flightID, err := pathID(r, "flightID")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var req struct {
		Orders []buyOrderRequest `json:"orders"`
	}
	if err := decodeBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if len(req.Orders) == 0 {
		handleServiceError(w, model.NewInvalidQueryError("at least one order is required"))
		return
	}

	var orders []model.TicketOrder
	for _, order := range req.Orders {
		switch order.SeatClass {
		case model.SeatClassBusiness, model.SeatClassEconomy:
		default:
			handleServiceError(w, model.NewInvalidQueryError("seatClass must be business or economy"))
			return
		}
		count := order.Count
		if count <= 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			orders = append(orders, model.TicketOrder{
				FlightID:  flightID,
				SeatClass: order.SeatClass,
				Price:     order.Price,
			})
		}
	}

	if err := h.backend.BuyTicket(r.Context(), orders); err != nil {
		h.authSink.HandleBackendError(err)
		handleServiceError(w, err)
		return
	}

	h.notifier.Info("Tickets purchased.")
	h.logger.Info("チケットを購入しました",
		slog.Int("flight_id", flightID),
		slog.Int("ticket_count", len(orders)),
	)
	writeViewState(w, h.triggerView(r.Context(), flightID), h.notifier)
}

// triggerView は対象便を差し替えて購入ビューのフェッチを実行する。
func (h *BuyHandler) triggerView(ctx context.Context, flightID int) fetcher.State[*BuyView] {
	h.mu.Lock()
	h.flightID = flightID
	h.mu.Unlock()
	return h.viewFetcher.Trigger(ctx)
}

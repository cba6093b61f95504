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

// RegisterTicketRequest はゲートでの搭乗登録のリクエストボディ。
type RegisterTicketRequest struct {
	TicketID    int `json:"ticketId"`
	PassengerID int `json:"passengerId"`
	SeatID      int `json:"seatId"`
}

// RegisterLuggageRequest は手荷物登録のリクエストボディ。
// 重量はバックエンドの契約に合わせて文字列で送る。
type RegisterLuggageRequest struct {
	Weight      string              `json:"weight"`
	Status      model.LuggageStatus `json:"status"`
	PassengerID int                 `json:"passengerId"`
	TicketID    int                 `json:"ticketId"`
}

// UpdateLuggageRequest は手荷物更新のリクエストボディ。
type UpdateLuggageRequest struct {
	Weight string              `json:"weight"`
	Status model.LuggageStatus `json:"status"`
}

// startRegistrationRequest はPOST /gates/{id}/start-registrationのボディ。
type startRegistrationRequest struct {
	FlightID  string `json:"flightId"`
	StartedAt string `json:"startedAt"`
}

// StartRegistrationResponse は登録セッション開始のレスポンス。
// バックエンド採番のセッションIDを含む。
type StartRegistrationResponse struct {
	ID int `json:"id"`
}

// closeRegistrationRequest はPUT /gates/{id}/close-registrationのボディ。
type closeRegistrationRequest struct {
	ID       string `json:"id"`
	ClosedAt string `json:"closedAt"`
}

// RegisteredTickets はゲートの搭乗登録済みチケット一覧を取得する。
func (c *Client) RegisteredTickets(ctx context.Context, gateID int) ([]model.RegisteredTicket, error) {
	var registered []model.RegisteredTicket
	path := fmt.Sprintf("/gates/%d/registered-tickets", gateID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &registered, true); err != nil {
		return nil, err
	}
	return registered, nil
}

// RegisterTicket はチケットをゲートに搭乗登録する。
func (c *Client) RegisterTicket(ctx context.Context, gateID int, req RegisterTicketRequest) error {
	path := fmt.Sprintf("/gates/%d/register-ticket", gateID)
	return c.do(ctx, http.MethodPost, path, nil, req, nil, true)
}

// RemoveRegisteredTicket は搭乗登録を取り消す。
func (c *Client) RemoveRegisteredTicket(ctx context.Context, gateID, registeredTicketID int) error {
	path := fmt.Sprintf("/gates/%d/registered-ticket/%d/remove-ticket", gateID, registeredTicketID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, true)
}

// RegisterLuggage は手荷物を登録する。
func (c *Client) RegisterLuggage(ctx context.Context, gateID int, req RegisterLuggageRequest) error {
	path := fmt.Sprintf("/gates/%d/register-luggage", gateID)
	return c.do(ctx, http.MethodPost, path, nil, req, nil, true)
}

// UpdateLuggage は登録済み手荷物の重量・状態を更新する。
func (c *Client) UpdateLuggage(ctx context.Context, gateID, luggageID int, req UpdateLuggageRequest) error {
	path := fmt.Sprintf("/gates/%d/registered-luggage/%d/update-luggage", gateID, luggageID)
	return c.do(ctx, http.MethodPut, path, nil, req, nil, true)
}

// RemoveLuggage は登録済み手荷物を削除する。
func (c *Client) RemoveLuggage(ctx context.Context, gateID, luggageID int) error {
	path := fmt.Sprintf("/gates/%d/registered-luggage/%d/remove-luggage", gateID, luggageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, true)
}

// LuggageWeight は便の手荷物総重量を取得する。
func (c *Client) LuggageWeight(ctx context.Context, gateID, flightID int) (float64, error) {
	q := url.Values{}
	q.Set("flightId", strconv.Itoa(flightID))
	path := fmt.Sprintf("/gates/%d/register-luggage/weight", gateID)
	var resp struct {
		Weight float64 `json:"weight"`
	}
	if err := c.do(ctx, http.MethodGet, path, q, nil, &resp, true); err != nil {
		return 0, err
	}
	return resp.Weight, nil
}

// StartRegistration はゲートに登録セッションウィンドウを開く。
func (c *Client) StartRegistration(ctx context.Context, gateID, flightID int, startedAt time.Time) (*StartRegistrationResponse, error) {
	path := fmt.Sprintf("/gates/%d/start-registration", gateID)
	var resp StartRegistrationResponse
	err := c.do(ctx, http.MethodPost, path, nil, startRegistrationRequest{
		FlightID:  strconv.Itoa(flightID),
		StartedAt: startedAt.UTC().Format(time.RFC3339),
	}, &resp, true)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CloseRegistration は登録セッションウィンドウを閉じる。
// registrationIDはStartRegistrationで採番されたID。
func (c *Client) CloseRegistration(ctx context.Context, gateID int, registrationID string, closedAt time.Time) error {
	path := fmt.Sprintf("/gates/%d/close-registration", gateID)
	return c.do(ctx, http.MethodPut, path, nil, closeRegistrationRequest{
		ID:       registrationID,
		ClosedAt: closedAt.UTC().Format(time.RFC3339),
	}, nil, true)
}

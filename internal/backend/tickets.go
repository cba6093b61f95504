package backend

import (
	"context"
	"net/http"

	"github.com/lembair/portal/internal/model"
)

// TicketAvailability は全体の座席空き状況を取得する。
func (c *Client) TicketAvailability(ctx context.Context) (*model.SeatAvailability, error) {
	var avail model.SeatAvailability
	if err := c.do(ctx, http.MethodGet, "/tickets/details/available", nil, nil, &avail, true); err != nil {
		return nil, err
	}
	return &avail, nil
}

// BuyTicket は1枚以上のチケットをまとめて購入する。
// リクエストボディは注文の配列をそのまま送る。
func (c *Client) BuyTicket(ctx context.Context, orders []model.TicketOrder) error {
	return c.do(ctx, http.MethodPost, "/tickets/buy-ticket", nil, orders, nil, true)
}

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

// buildFlightQuery はフィルタ条件をクエリ文字列に変換する。
// ゼロ値のフィールドはクエリに含めない。
func buildFlightQuery(filter model.FlightFilter) url.Values {
	q := url.Values{}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.SearchName != "" {
		q.Set("searchName", filter.SearchName)
	}
	if !filter.ScheduleTimeFrom.IsZero() {
		q.Set("scheduleTimeFrom", filter.ScheduleTimeFrom.UTC().Format(time.RFC3339))
	}
	if !filter.ScheduleTimeTo.IsZero() {
		q.Set("scheduleTimeTo", filter.ScheduleTimeTo.UTC().Format(time.RFC3339))
	}
	if filter.GateID != 0 {
		q.Set("gateId", strconv.Itoa(filter.GateID))
	}
	return q
}

// ListFlights はフィルタ条件に一致する便の一覧を取得する。
func (c *Client) ListFlights(ctx context.Context, filter model.FlightFilter) ([]model.Flight, error) {
	var flights []model.Flight
	if err := c.do(ctx, http.MethodGet, "/flights", buildFlightQuery(filter), nil, &flights, true); err != nil {
		return nil, err
	}
	return flights, nil
}

// GetFlight は便の詳細（チケット・価格を含む）を取得する。
func (c *Client) GetFlight(ctx context.Context, flightID int) (*model.FlightDetail, error) {
	var detail model.FlightDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/flights/%d", flightID), nil, nil, &detail, true); err != nil {
		return nil, err
	}
	return &detail, nil
}

// AvailableSeats は便の座席空き状況を取得する。
func (c *Client) AvailableSeats(ctx context.Context, flightID int) (*model.SeatAvailability, error) {
	var avail model.SeatAvailability
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/flights/%d/available-seats", flightID), nil, nil, &avail, true); err != nil {
		return nil, err
	}
	return &avail, nil
}

// UpdateFlightGate は便のゲートを変更する。
func (c *Client) UpdateFlightGate(ctx context.Context, flightID, gateID int) error {
	path := fmt.Sprintf("/flights/%d/update-flight/gate", flightID)
	return c.do(ctx, http.MethodPut, path, nil, map[string]int{"gateId": gateID}, nil, true)
}

// UpdateFlightScheduleTime は便の予定時刻を変更する。
// バックエンドのパス綴りは shedule-time（原文ママ）。
func (c *Client) UpdateFlightScheduleTime(ctx context.Context, flightID int, scheduleTime time.Time) error {
	path := fmt.Sprintf("/flights/%d/update-flight/shedule-time", flightID)
	body := map[string]string{"scheduleTime": scheduleTime.UTC().Format(time.RFC3339)}
	return c.do(ctx, http.MethodPut, path, nil, body, nil, true)
}

// UpdateFlightStatus は便の運航状態を変更する。
func (c *Client) UpdateFlightStatus(ctx context.Context, flightID int, status model.FlightStatus) error {
	path := fmt.Sprintf("/flights/%d/update-flight/status", flightID)
	return c.do(ctx, http.MethodPut, path, nil, map[string]string{"status": string(status)}, nil, true)
}

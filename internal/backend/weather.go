package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/lembair/portal/internal/model"
)

// WeatherForecast は指定時刻の気象予報を取得する。
// 認可不要の公開エンドポイント。
func (c *Client) WeatherForecast(ctx context.Context, from, to time.Time) (*model.Forecast, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))
	var forecast model.Forecast
	if err := c.do(ctx, http.MethodGet, "/weather/forecast", q, nil, &forecast, false); err != nil {
		return nil, err
	}
	return &forecast, nil
}

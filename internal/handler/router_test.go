package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lembair/portal/internal/middleware"
	"github.com/lembair/portal/internal/model"
	"github.com/lembair/portal/internal/notify"
	"github.com/lembair/portal/internal/storage"
)

// sessionTokenStub はテスト用のTokenReader実装。
type sessionTokenStub struct {
	token string
}

func (s *sessionTokenStub) Token() string { return s.token }

// fakeStatsBackend はテスト用のStatsBackend実装。
type fakeStatsBackend struct{}

func (fakeStatsBackend) StatsActiveUsers(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (fakeStatsBackend) StatsLuggagesPerMonth(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (fakeStatsBackend) StatsMonthlyFlightStatus(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (fakeStatsBackend) StatsTopAirports(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (fakeStatsBackend) StatsTopBuyings(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

// fakeWeatherBackend はテスト用のWeatherBackend実装。
type fakeWeatherBackend struct{}

func (fakeWeatherBackend) WeatherForecast(ctx context.Context, from, to time.Time) (*model.Forecast, error) {
	return &model.Forecast{TempC: 21.5}, nil
}

// newRouterForTest は全ハンドラーをフェイクで結線したルーターを構築する。
func newRouterForTest(t *testing.T, tokens middleware.TokenReader) http.Handler {
	t.Helper()

	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	center := notify.NewCenter(logger)

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(0, 0))
	t.Cleanup(rateLimiter.Stop)

	deps := &RouterDeps{
		SessionTokens:     tokens,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rateLimiter,
		Logger:            logger,

		Auth:    NewAuthHandler(&fakeSession{}),
		Flights: NewFlightsHandler(&fakeFlightsBackend{}, center, noopSink{}, logger),
		Gates:   NewGatesHandler(&fakeGatesBackend{}, center, noopSink{}, logger),
		Registration: NewRegistrationHandler(&fakeRegistrationBackend{}, storage.NewMemoryStore(),
			time.Hour, time.Hour, center, noopSink{}, logger),
		Buy:     NewBuyHandler(&fakeBuyBackend{}, center, noopSink{}, logger),
		Stats:   NewStatsHandler(fakeStatsBackend{}, center, noopSink{}, logger),
		Weather: NewWeatherHandler(fakeWeatherBackend{}, center, logger),
	}

	return NewRouter(deps)
}

func TestRouter_GuardBlocksProtectedViews(t *testing.T) {
	router := newRouterForTest(t, &sessionTokenStub{})

	protected := []string{
		"/portal/views/flights",
		"/portal/views/gates",
		"/portal/views/registration/timer",
		"/portal/views/buy/5",
		"/portal/views/stats",
	}
	for _, path := range protected {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: ステータス = %d, 未認証時は 401 であるべき", path, rec.Code)
			continue
		}

		var body struct {
			Message   string `json:"message"`
			LoginPath string `json:"loginPath"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Message != "Please log in to access this page." {
			t.Errorf("%s: Message = %q, インタースティシャルの定型文であるべき", path, body.Message)
		}
		if body.LoginPath != "/login" {
			t.Errorf("%s: LoginPath = %q, want /login", path, body.LoginPath)
		}
	}
}

func TestRouter_GuardPassesWithToken(t *testing.T) {
	router := newRouterForTest(t, &sessionTokenStub{token: "tok"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portal/views/flights", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("ステータス = %d, トークンがあれば保護ビューへ到達すべき", rec.Code)
	}
}

func TestRouter_WeatherIsPublic(t *testing.T) {
	router := newRouterForTest(t, &sessionTokenStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portal/views/weather", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d, 気象ビューは未認証でも参照できるべき", rec.Code)
	}

	env := decodeEnvelope(t, rec)
	if env.Status != "success" {
		t.Errorf("Status = %s, want success", env.Status)
	}
}

func TestRouter_Health(t *testing.T) {
	router := newRouterForTest(t, &sessionTokenStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d, want 200", rec.Code)
	}

	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestRouter_AuthEndpointsReachableWithoutToken(t *testing.T) {
	router := newRouterForTest(t, &sessionTokenStub{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/portal/auth/login",
		bytes.NewBufferString(`{"email":"a@example.com","password":"pw"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ステータス = %d, ログインは未認証で到達できるべき", rec.Code)
	}
}

func TestRouter_URLParamsReachHandlers(t *testing.T) {
	router := newRouterForTest(t, &sessionTokenStub{token: "tok"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portal/views/registration/2/10/luggage-weight", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ステータス = %d, want 200", rec.Code)
	}

	var body map[string]float64
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["weight"] != 42.5 {
		t.Errorf("weight = %v, パスパラメータがハンドラーへ渡っているべき", body["weight"])
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newRouterForTest(t, &sessionTokenStub{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

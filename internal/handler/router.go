package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lembair/portal/internal/middleware"
)

// loginPath はルートガードが未認証時に案内するログイン画面のパス。
const loginPath = "/login"

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionTokens     middleware.TokenReader
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 各ビューのハンドラー
	Auth         *AuthHandler
	Flights      *FlightsHandler
	Gates        *GatesHandler
	Registration *RegistrationHandler
	Buy          *BuyHandler
	Stats        *StatsHandler
	Weather      *WeatherHandler

	// Prometheusスクレイプ用ハンドラー
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → RecoveryMiddleware → LoggingMiddleware → SecurityHeadersMiddleware
//
// 保護ビュー（/portal/views/*、weatherを除く）にはさらに
// RouteGuard → RateLimitMiddleware(GeneralMiddleware) を適用する。
// 認証エンドポイントにはログイン試行専用のレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 認証エンドポイント（専用レート制限つき）
	r.Route("/portal/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", deps.Auth.Login)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", deps.Auth.Register)
		r.Post("/logout", deps.Auth.Logout)
		r.Get("/session", deps.Auth.Session)
	})

	// 気象ビューは公開
	r.Get("/portal/views/weather", deps.Weather.View)

	// --- ルートガードで保護するビュー ---
	// ミドルウェアスタック: RouteGuard → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRouteGuard(deps.SessionTokens, loginPath))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 便一覧・便詳細・便の変更操作
		r.Route("/portal/views/flights", func(r chi.Router) {
			r.Get("/", deps.Flights.List)

			r.Route("/{flightID}", func(r chi.Router) {
				r.Get("/", deps.Flights.Detail)
				r.Put("/gate", deps.Flights.UpdateGate)
				r.Put("/schedule-time", deps.Flights.UpdateScheduleTime)
				r.Put("/status", deps.Flights.UpdateStatus)
			})
		})

		// ゲート一覧・詳細・レポート
		r.Route("/portal/views/gates", func(r chi.Router) {
			r.Get("/", deps.Gates.List)
			r.Get("/free", deps.Gates.Free)
			r.Get("/passengers", deps.Gates.Passengers)

			r.Route("/{gateID}", func(r chi.Router) {
				r.Get("/", deps.Gates.Detail)
				r.Get("/report", deps.Gates.Report)
			})
		})

		// ゲート登録業務（登録セッションウィンドウつき）
		r.Route("/portal/views/registration", func(r chi.Router) {
			r.Get("/timer", deps.Registration.TimerSnapshot)
			r.Post("/timer/stop", deps.Registration.StopTimer)

			r.Route("/{gateID}/{flightID}", func(r chi.Router) {
				r.Get("/", deps.Registration.View)
				r.Post("/timer/start", deps.Registration.StartTimer)
				r.Post("/tickets", deps.Registration.RegisterTicket)
				r.Delete("/tickets/{registeredTicketID}", deps.Registration.RemoveTicket)
				r.Post("/luggage", deps.Registration.RegisterLuggage)
				r.Put("/luggage/{luggageID}", deps.Registration.UpdateLuggage)
				r.Delete("/luggage/{luggageID}", deps.Registration.RemoveLuggage)
				r.Get("/luggage-weight", deps.Registration.LuggageWeight)
			})
		})

		// チケット購入
		r.Route("/portal/views/buy/{flightID}", func(r chi.Router) {
			r.Get("/", deps.Buy.View)
			r.Post("/", deps.Buy.Buy)
		})

		// 統計ダッシュボード
		r.Get("/portal/views/stats", deps.Stats.View)
	})

	return r
}

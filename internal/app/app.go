// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lembair/portal/internal/backend"
	"github.com/lembair/portal/internal/config"
	"github.com/lembair/portal/internal/handler"
	"github.com/lembair/portal/internal/logger"
	"github.com/lembair/portal/internal/metrics"
	"github.com/lembair/portal/internal/middleware"
	"github.com/lembair/portal/internal/notify"
	"github.com/lembair/portal/internal/session"
	"github.com/lembair/portal/internal/storage"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	return runServe(cfg)
}

// runServe はポータルサーバーモードで起動する。
// 永続ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. 永続ストアを開く
	store, err := storage.NewFileStore(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}

	slog.Info("state store opened", slog.String("dir", cfg.StateDir))

	// 2. メトリクスコレクタの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. セッションストアとバックエンドクライアントの初期化
	// 両者は相互参照する（クライアントはトークンをセッションから読み、
	// セッションは認証操作をクライアントに委譲する）ため2段階で結線する。
	sessions := session.NewStore(store, nil, log)
	client := backend.NewClient(
		&http.Client{Timeout: cfg.FetchTimeout},
		cfg.APIBaseURL, sessions, log, cfg.FetchMaxSize,
	)
	sessions.SetAuth(client)
	sessions.SetMetrics(collector)
	client.SetMetrics(collector)

	// 4. 通知センターの初期化
	notifier := notify.NewCenter(log)

	// 5. 各ビューのハンドラーの構築
	authHandler := handler.NewAuthHandler(sessions)
	flightsHandler := handler.NewFlightsHandler(client, notifier, sessions, log)
	gatesHandler := handler.NewGatesHandler(client, notifier, sessions, log)
	registrationHandler := handler.NewRegistrationHandler(
		client, store, cfg.RegistrationWindow, cfg.TimerTick, notifier, sessions, log,
	)
	buyHandler := handler.NewBuyHandler(client, notifier, sessions, log)
	statsHandler := handler.NewStatsHandler(client, notifier, sessions, log)
	weatherHandler := handler.NewWeatherHandler(client, notifier, log)

	flightsHandler.SetMetrics(collector)
	gatesHandler.SetMetrics(collector)
	registrationHandler.SetMetrics(collector)
	buyHandler.SetMetrics(collector)
	statsHandler.SetMetrics(collector)
	weatherHandler.SetMetrics(collector)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		SessionTokens:     sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,

		Auth:         authHandler,
		Flights:      flightsHandler,
		Gates:        gatesHandler,
		Registration: registrationHandler,
		Buy:          buyHandler,
		Stats:        statsHandler,
		Weather:      weatherHandler,

		MetricsHandler: metrics.Handler(registry),
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("portal server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down portal server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 開いたままの登録セッションウィンドウを閉じてからサーバーを止める
	if err := registrationHandler.Timer().Stop(ctx); err != nil {
		slog.Warn("failed to close registration window on shutdown",
			slog.String("error", err.Error()),
		)
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("portal server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

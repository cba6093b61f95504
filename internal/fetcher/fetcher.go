// Package fetcher はビューごとのリソースフェッチを統一する汎用フェッチユニットを提供する。
// 各ビューは1つのFetcherを持ち、トリガーごとに loading → success/error の
// 状態遷移を行う。結果はビュー状態として保持され、エラー時は直前のデータを
// 破棄せずに残す（エラー通知の下に以前のデータが見えるのは仕様）。
package fetcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lembair/portal/internal/backend"
	"github.com/lembair/portal/internal/notify"
)

// Status はフェッチユニットの状態を表す。
type Status string

const (
	// StatusIdle は一度もトリガーされていない初期状態。
	StatusIdle Status = "idle"
	// StatusLoading はリクエストが実行中であることを示す。
	StatusLoading Status = "loading"
	// StatusSuccess は直近のトリガーが成功したことを示す。
	StatusSuccess Status = "success"
	// StatusError は直近のトリガーが失敗したことを示す。
	StatusError Status = "error"
)

// State はフェッチユニットの観測可能な状態のスナップショット。
type State[T any] struct {
	Status       Status `json:"status"`
	Data         T      `json:"data"`
	HasData      bool   `json:"hasData"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// LoadFunc は1回のネットワーク読み取りを実行する。
type LoadFunc[T any] func(ctx context.Context) (T, error)

// FetchRecorder はフェッチ結果をメトリクスに記録する。
type FetchRecorder interface {
	RecordFetchSuccess(view string)
	RecordFetchFailure(view string)
	RecordFetchLatency(view string, duration time.Duration)
}

// AuthErrorSink はバックエンドの認可失敗を受け取る。セッションストアが実装する。
type AuthErrorSink interface {
	HandleBackendError(err error)
}

// Fetcher は1ビュー分のフェッチユニット。
// トリガーごとに単調増加するシーケンス番号を割り当て、最新でない
// シーケンスの完了結果は破棄する。これにより同一ビューへの並行トリガーで
// 後着のレスポンスが勝つ競合を排除する。
type Fetcher[T any] struct {
	mu    sync.Mutex
	name  string
	load  LoadFunc[T]
	state State[T]
	seq   uint64

	notifier notify.Notifier
	logger   *slog.Logger
	metrics  FetchRecorder // nilの場合は記録しない
	authSink AuthErrorSink // nilの場合は自動ログアウトしない
}

// New はFetcherの新しいインスタンスを生成する。初期状態はidle。
func New[T any](name string, load LoadFunc[T], notifier notify.Notifier, logger *slog.Logger) *Fetcher[T] {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Fetcher[T]{
		name:     name,
		load:     load,
		notifier: notifier,
		logger:   logger,
		state:    State[T]{Status: StatusIdle},
	}
}

// SetMetrics はフェッチ結果の記録用レコーダーを設定する。
func (f *Fetcher[T]) SetMetrics(m FetchRecorder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = m
}

// SetAuthSink は認可失敗時の通知先を設定する。
func (f *Fetcher[T]) SetAuthSink(sink AuthErrorSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authSink = sink
}

// State は現在の状態のスナップショットを返す。
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Trigger はフェッチを1回実行し、完了後の状態を返す。
// 実行中に新しいトリガーが発生した場合、古い方の結果は破棄される。
func (f *Fetcher[T]) Trigger(ctx context.Context) State[T] {
	f.mu.Lock()
	f.seq++
	mySeq := f.seq
	f.state.Status = StatusLoading
	metrics := f.metrics
	authSink := f.authSink
	f.mu.Unlock()

	start := time.Now()
	data, err := f.load(ctx)
	duration := time.Since(start)

	if metrics != nil {
		metrics.RecordFetchLatency(f.name, duration)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// 世代ガード: 自分より新しいトリガーがすでに走っている場合は結果を破棄する
	if f.seq != mySeq {
		f.logger.Info("古い世代のフェッチ結果を破棄しました",
			slog.String("view", f.name),
			slog.Uint64("seq", mySeq),
			slog.Uint64("latest_seq", f.seq),
		)
		return f.state
	}

	if err != nil {
		message := backend.ErrorMessage(err)
		f.state.Status = StatusError
		f.state.ErrorMessage = message
		// Dataは直前の値のまま残す
		f.notifier.Error(message)
		if metrics != nil {
			metrics.RecordFetchFailure(f.name)
		}
		f.logger.Warn("リソースフェッチに失敗しました",
			slog.String("view", f.name),
			slog.String("error", message),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		if authSink != nil {
			authSink.HandleBackendError(err)
		}
		return f.state
	}

	f.state.Status = StatusSuccess
	f.state.Data = data
	f.state.HasData = true
	f.state.ErrorMessage = ""
	if metrics != nil {
		metrics.RecordFetchSuccess(f.name)
	}
	f.logger.Info("リソースフェッチが完了しました",
		slog.String("view", f.name),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return f.state
}

// Package timer はゲート登録セッションのカウントダウンタイマーを提供する。
// 締切は永続ストアに保存され、プロセス再起動をまたいで復元される。
// 残り時間は壁時計からの再計算（deadline - now）で求める。単純な
// デクリメント方式ではないため、一時停止や再開をまたいでも正しく動く。
package timer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lembair/portal/internal/backend"
	"github.com/lembair/portal/internal/model"
	"github.com/lembair/portal/internal/notify"
	"github.com/lembair/portal/internal/storage"
)

// Callbacks はタイマーの状態遷移に伴うバックエンド呼び出し。
type Callbacks struct {
	// OnStart は登録セッションウィンドウを開き、バックエンド採番のIDを返す。
	OnStart func(ctx context.Context, startedAt time.Time) (registrationID string, err error)
	// OnStop は登録セッションウィンドウを閉じる。
	OnStop func(ctx context.Context, registrationID string, closedAt time.Time) error
	// OnExpire は締切の自然満了時に1回だけ呼ばれる。
	OnExpire func()
}

// Snapshot はタイマーの観測可能な状態。
type Snapshot struct {
	Active           bool      `json:"active"`
	RemainingSeconds int       `json:"remainingSeconds"`
	Deadline         time.Time `json:"deadline,omitzero"`
	RegistrationID   string    `json:"registrationId,omitempty"`
}

// Timer は登録セッションウィンドウの状態機械。状態はInactive/Activeの2つ。
type Timer struct {
	mu             sync.Mutex
	active         bool
	deadline       time.Time
	registrationID string
	stopCh         chan struct{} // Active中のみ非nil。満了監視ループを止める。

	window    time.Duration
	tick      time.Duration
	store     storage.Store
	callbacks Callbacks
	notifier  notify.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// New はTimerを生成し、永続化された締切があれば状態を復元する。
// 締切が未来ならActiveとして再開し、過去なら黙って破棄する
// （遡ってOnExpireを発火することはしない）。
func New(store storage.Store, window, tick time.Duration, callbacks Callbacks, notifier notify.Notifier, logger *slog.Logger) *Timer {
	if window <= 0 {
		window = 15 * time.Minute
	}
	if tick <= 0 {
		tick = time.Second
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}

	t := &Timer{
		window:    window,
		tick:      tick,
		store:     store,
		callbacks: callbacks,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}

	t.resume()
	return t
}

// resume は永続化された締切から状態を復元する。
func (t *Timer) resume() {
	persisted := t.store.Get(storage.KeyRegistrationEndTime)
	if persisted == "" {
		return
	}

	deadline, err := time.Parse(time.RFC3339, persisted)
	if err != nil || !deadline.After(t.now()) {
		// 期限切れまたは壊れた値は黙って破棄する
		t.clearPersisted()
		return
	}

	t.active = true
	t.deadline = deadline
	t.registrationID = t.store.Get(storage.KeyRegistrationID)
	t.stopCh = make(chan struct{})
	go t.watch(t.stopCh)

	t.logger.Info("登録セッションを復元しました",
		slog.Time("deadline", deadline),
		slog.Int("remaining_seconds", int(time.Until(deadline).Seconds())),
	)
}

// Snapshot は現在の状態のスナップショットを返す。
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return Snapshot{Active: false}
	}
	remaining := int(t.deadline.Sub(t.now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		Active:           true,
		RemainingSeconds: remaining,
		Deadline:         t.deadline,
		RegistrationID:   t.registrationID,
	}
}

// Active は登録セッションウィンドウが開いているかを返す。
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Start は登録セッションウィンドウを開く。
// ローカル状態は楽観的にActiveへ遷移するが、バックエンド呼び出し（OnStart）が
// 失敗した場合はロールバックして訂正を通知する。実際の状態遷移の権威は
// バックエンドの応答とする。
func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return model.NewWindowAlreadyActiveError()
	}

	startedAt := t.now()
	deadline := startedAt.Add(t.window)
	t.active = true
	t.deadline = deadline
	t.registrationID = ""
	t.stopCh = make(chan struct{})
	stopCh := t.stopCh
	t.mu.Unlock()

	if err := t.store.Set(storage.KeyRegistrationEndTime, deadline.UTC().Format(time.RFC3339)); err != nil {
		t.logger.Error("登録セッション締切の永続化に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	registrationID, err := t.callbacks.OnStart(ctx, startedAt)
	if err != nil {
		// バックエンドがウィンドウを開けなかった場合はローカル状態を戻す
		t.mu.Lock()
		if t.stopCh == stopCh {
			t.active = false
			t.registrationID = ""
			close(stopCh)
			t.stopCh = nil
		}
		t.mu.Unlock()
		t.clearPersisted()

		message := backend.ErrorMessage(err)
		t.notifier.Error(message)
		t.logger.Warn("登録セッションの開始に失敗したためローカル状態を戻しました",
			slog.String("error", message),
		)
		return err
	}

	t.mu.Lock()
	if t.stopCh == stopCh {
		t.registrationID = registrationID
	}
	t.mu.Unlock()

	if registrationID != "" {
		if err := t.store.Set(storage.KeyRegistrationID, registrationID); err != nil {
			t.logger.Error("登録セッションIDの永続化に失敗しました",
				slog.String("error", err.Error()),
			)
		}
	}

	go t.watch(stopCh)

	t.logger.Info("登録セッションを開始しました",
		slog.Time("deadline", deadline),
		slog.String("registration_id", registrationID),
	)
	return nil
}

// Stop は登録セッションウィンドウを明示的に閉じる。
// Inactive状態で呼ばれた場合は何もしない。バックエンド呼び出し（OnStop）の
// 失敗は通知のみ行う: ローカルのウィンドウはすでに閉じている。
func (t *Timer) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return nil
	}
	t.active = false
	registrationID := t.registrationID
	t.registrationID = ""
	close(t.stopCh)
	t.stopCh = nil
	t.mu.Unlock()

	t.clearPersisted()

	if t.callbacks.OnStop != nil {
		if err := t.callbacks.OnStop(ctx, registrationID, t.now()); err != nil {
			message := backend.ErrorMessage(err)
			t.notifier.Error(message)
			t.logger.Warn("登録セッションのクローズ通知に失敗しました",
				slog.String("registration_id", registrationID),
				slog.String("error", message),
			)
			return err
		}
	}

	t.logger.Info("登録セッションを停止しました",
		slog.String("registration_id", registrationID),
	)
	return nil
}

// watch は締切の満了を監視するループ。
// stopChが自分の世代のチャネルである間だけ満了を発火できるため、
// OnExpireは満了ごとに正確に1回だけ呼ばれる。
func (t *Timer) watch(stopCh chan struct{}) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			t.mu.Lock()
			if !t.active || t.stopCh != stopCh {
				t.mu.Unlock()
				return
			}
			if t.deadline.After(t.now()) {
				t.mu.Unlock()
				continue
			}

			// 満了: Inactiveへ遷移し、この世代の監視を終了する
			t.active = false
			t.registrationID = ""
			close(t.stopCh)
			t.stopCh = nil
			t.mu.Unlock()

			t.clearPersisted()
			t.notifier.Warn("Registration session expired")
			t.logger.Info("登録セッションが満了しました")
			if t.callbacks.OnExpire != nil {
				t.callbacks.OnExpire()
			}
			return
		}
	}
}

// clearPersisted は永続化された締切とセッションIDを削除する。
func (t *Timer) clearPersisted() {
	if err := t.store.Remove(storage.KeyRegistrationEndTime); err != nil {
		t.logger.Error("登録セッション締切の削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	if err := t.store.Remove(storage.KeyRegistrationID); err != nil {
		t.logger.Error("登録セッションIDの削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Package notify はトースト相当の一時通知を提供する。
// フェッチャーやタイマーが発行した通知を保持し、ビュー層が次回の
// レスポンスでまとめて排出する。
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// Level は通知の重要度を表す。
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification は1件の一時通知を表す。
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier は通知の発行インターフェース。
type Notifier interface {
	Info(message string)
	Warn(message string)
	Error(message string)
}

// Center は通知を蓄積しビュー層に排出するNotifier実装。
// サーバー由来のメッセージ文字列はそのままビューへ流れるため、
// 保持前にbluemondayの厳格ポリシーでサニタイズする。
type Center struct {
	mu      sync.Mutex
	pending []Notification
	policy  *bluemonday.Policy
	logger  *slog.Logger
}

// NewCenter はCenterの新しいインスタンスを生成する。
func NewCenter(logger *slog.Logger) *Center {
	return &Center{
		policy: bluemonday.StrictPolicy(),
		logger: logger,
	}
}

// Info は情報通知を発行する。
func (c *Center) Info(message string) {
	c.add(LevelInfo, message)
}

// Warn は警告通知を発行する。
func (c *Center) Warn(message string) {
	c.add(LevelWarning, message)
}

// Error はエラー通知を発行する。
func (c *Center) Error(message string) {
	c.add(LevelError, message)
}

// Drain は蓄積された通知をすべて取り出して返す。
// 取り出した通知はCenterから消える。
func (c *Center) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	drained := c.pending
	c.pending = nil
	if drained == nil {
		drained = []Notification{}
	}
	return drained
}

// Pending は現在蓄積されている通知の件数を返す。テスト用。
func (c *Center) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Center) add(level Level, message string) {
	sanitized := c.policy.Sanitize(message)

	c.mu.Lock()
	c.pending = append(c.pending, Notification{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   sanitized,
		CreatedAt: time.Now(),
	})
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("通知を発行しました",
			slog.String("level", string(level)),
			slog.String("message", sanitized),
		)
	}
}

// Discard は通知を捨てるNotifier実装。
// 通知を出さないことが意図されている呼び出し箇所（サイレント扱いの
// 経路）で明示的に使用する。
type Discard struct{}

// Info は何もしない。
func (Discard) Info(message string) {}

// Warn は何もしない。
func (Discard) Warn(message string) {}

// Error は何もしない。
func (Discard) Error(message string) {}

// Package notify はステータス変更の通知（メール・Kafkaイベント）を提供する。
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/repository"
)

// 通知対象の種別
const (
	KindDocument   = "document"
	KindEnrollment = "enrollment"
	KindInquiry    = "inquiry"
	KindStub       = "stub"

	// KindOverdueDigest は期限超過申請の管理者向けまとめ通知。
	KindOverdueDigest = "overdue-digest"
)

// dispatchTimeout は1件の通知に許す最大時間。
const dispatchTimeout = 15 * time.Second

// Event はステータス変更イベントを表す。
// Recipient と RecipientName はDispatcherが申請者のユーザーレコードから、
// SchoolName は配信時点の学校設定から補完する。
type Event struct {
	Kind       string    `json:"kind"`
	RecordID   string    `json:"recordId"`
	UserID     string    `json:"userId"`
	Reference  string    `json:"reference"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Note       string    `json:"note,omitempty"`
	ChangedBy  string    `json:"changedBy,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`

	Recipient     string `json:"-"`
	RecipientName string `json:"-"`
	SchoolName    string `json:"-"`
}

// Notifier は1つの通知チャネルを表す。
type Notifier interface {
	// Name はメトリクス・ログ用のチャネル名を返す。
	Name() string
	// StatusChanged はイベントを送信する。
	StatusChanged(ctx context.Context, ev Event) error
}

// Dispatcher はイベントを全チャネルへ非同期に配信する。
// 配信の失敗は記録のみ行い、呼び出し元には返さない。
type Dispatcher struct {
	notifiers []Notifier
	users     repository.UserRepository
	settings  repository.SettingsRepository
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher はDispatcherを生成する。
// settingsがnilでない場合、statusUpdateNotificationsが無効なら配信しない。
func NewDispatcher(
	notifiers []Notifier,
	users repository.UserRepository,
	settings repository.SettingsRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		users:     users,
		settings:  settings,
		metrics:   collector,
		logger:    logger,
	}
}

// Dispatch はイベントをバックグラウンドで配信する。
// リクエストのキャンセルに影響されないよう、呼び出し元のcontextの値のみ引き継ぐ。
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	if len(d.notifiers) == 0 {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		defer cancel()
		d.deliver(bg, ev)
	}()
}

// Wait は配信中の通知が完了するまで待つ。シャットダウン時に呼び出す。
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	if d.settings != nil {
		s, err := d.settings.Get(ctx)
		if err != nil {
			d.logger.Error("通知設定の取得に失敗しました", slog.String("error", err.Error()))
			return
		}
		if !s.StatusUpdateNotifications {
			return
		}
		ev.SchoolName = s.SchoolName
	}

	if d.users != nil && ev.UserID != "" {
		user, err := d.users.FindByID(ctx, ev.UserID)
		if err != nil {
			d.logger.Error("通知先ユーザーの取得に失敗しました",
				slog.String("user_id", ev.UserID),
				slog.String("error", err.Error()),
			)
		} else if user != nil {
			ev.Recipient = user.Email
			ev.RecipientName = user.FullName()
		}
	}

	for _, n := range d.notifiers {
		err := n.StatusChanged(ctx, ev)
		d.metrics.RecordNotification(n.Name(), err)
		if err != nil {
			d.logger.Warn("通知の送信に失敗しました",
				slog.String("channel", n.Name()),
				slog.String("kind", ev.Kind),
				slog.String("record_id", ev.RecordID),
				slog.String("error", err.Error()),
			)
		}
	}
}

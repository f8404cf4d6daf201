// Package overdue は見込み完了日時を過ぎた書類申請の優先度引き上げジョブを提供する。
package overdue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/schoolportal/internal/access"
	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/notify"
)

// escalationNote は申請者への通知に添える文面。
const escalationNote = "Your request is past its estimated completion date and has been given high priority."

// Escalator は期限超過した申請の優先度引き上げを抽象化する。
type Escalator interface {
	EscalateOverdue(ctx context.Context, now time.Time) ([]*model.DocumentRequest, error)
}

// AdminDirectory はまとめ通知の宛先となる管理者の取得元。
type AdminDirectory interface {
	List(ctx context.Context) ([]*model.User, error)
}

// Dispatcher は通知配信のインターフェース。
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

// OverdueJob は期限超過した未完了申請の優先度をhighにし、申請者へ通知する。
// 書類管理の権限を持つ管理者には、引き上げた申請の一覧をまとめて1通送る。
// 既にhighの申請は対象外のため、同じ申請が二度通知されることはない。
type OverdueJob struct {
	repo       Escalator
	admins     AdminDirectory
	dispatcher Dispatcher
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time
}

// NewOverdueJob は新しいOverdueJobを生成する。
func NewOverdueJob(
	repo Escalator,
	admins AdminDirectory,
	dispatcher Dispatcher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *OverdueJob {
	return &OverdueJob{
		repo:       repo,
		admins:     admins,
		dispatcher: dispatcher,
		metrics:    collector,
		logger:     logger,
		now:        time.Now,
	}
}

// Name はジョブ名を返す。
func (j *OverdueJob) Name() string { return "overdue" }

// Run は期限超過チェックを1回実行する。
func (j *OverdueJob) Run(ctx context.Context) error {
	start := j.now()

	escalated, err := j.repo.EscalateOverdue(ctx, start)
	if err != nil {
		j.logger.Error("期限超過申請の優先度引き上げに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限超過申請の優先度引き上げに失敗: %w", err)
	}

	for _, req := range escalated {
		status := string(req.Status)
		j.dispatcher.Dispatch(ctx, notify.Event{
			Kind:       notify.KindDocument,
			RecordID:   req.ID,
			UserID:     req.UserID,
			Reference:  req.DocumentType,
			From:       status,
			To:         status,
			Note:       escalationNote,
			OccurredAt: start,
		})
		j.logger.Info("期限超過の申請を優先度highに引き上げました",
			slog.String("request_id", req.ID),
			slog.String("status", status),
		)
	}
	if len(escalated) > 0 {
		j.metrics.RecordEscalated(len(escalated))
		j.notifyAdmins(ctx, escalated, start)
	}

	duration := j.now().Sub(start)
	j.logger.Info("期限超過チェックが完了しました",
		slog.Int("escalated_count", len(escalated)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}

// notifyAdmins は書類管理の権限を持つ管理者へまとめ通知を送る。
// 管理者の取得に失敗しても優先度の引き上げは完了しているため、ジョブは失敗させない。
func (j *OverdueJob) notifyAdmins(ctx context.Context, escalated []*model.DocumentRequest, now time.Time) {
	users, err := j.admins.List(ctx)
	if err != nil {
		j.logger.Warn("期限超過通知の宛先取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	reference := fmt.Sprintf("%d document request(s)", len(escalated))
	note := digestNote(escalated)
	recordID := fmt.Sprintf("overdue-%s", now.UTC().Format("20060102T150405Z"))

	notified := 0
	for _, u := range users {
		if !access.CanAccessFeature(u.Role, access.FeatureDocumentManagement) {
			continue
		}
		j.dispatcher.Dispatch(ctx, notify.Event{
			Kind:       notify.KindOverdueDigest,
			RecordID:   recordID,
			UserID:     u.ID,
			Reference:  reference,
			From:       "overdue",
			To:         "overdue",
			Note:       note,
			OccurredAt: now,
		})
		notified++
	}
	j.logger.Info("期限超過の申請を管理者へ通知しました",
		slog.Int("admin_count", notified),
		slog.Int("request_count", len(escalated)),
	)
}

// digestNote は申請ごとに「書類種別 (ステータス, 期限)」を並べる。氏名などの個人情報は含めない。
func digestNote(escalated []*model.DocumentRequest) string {
	parts := make([]string, 0, len(escalated))
	for _, req := range escalated {
		due := "no due date"
		if req.EstimatedCompletionAt != nil {
			due = "due " + req.EstimatedCompletionAt.Format("2006-01-02")
		}
		parts = append(parts, fmt.Sprintf("%s (%s, %s)", req.DocumentType, req.Status, due))
	}
	return strings.Join(parts, "; ")
}

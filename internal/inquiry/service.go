// Package inquiry は利用者からの問い合わせと管理者の返信を扱う。
package inquiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/schoolportal/internal/lifecycle"
	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/notify"
	"github.com/hitoshi/schoolportal/internal/repository"
	"github.com/hitoshi/schoolportal/internal/security"
)

// maxMessageLength は問い合わせ本文と返信の最大文字数。
const maxMessageLength = 2000

// Dispatcher は通知配信のインターフェース。
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

// Service は問い合わせのサービス層。
type Service struct {
	repo       repository.InquiryRepository
	sanitizer  security.TextSanitizer
	dispatcher Dispatcher
	metrics    metrics.MetricsCollector
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.InquiryRepository,
	sanitizer security.TextSanitizer,
	dispatcher Dispatcher,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		repo:       repo,
		sanitizer:  sanitizer,
		dispatcher: dispatcher,
		metrics:    collector,
		now:        time.Now,
	}
}

// cleanMessage はマークアップを除去し、空や長すぎる本文を拒否する。
func (s *Service) cleanMessage(raw, field string) (string, error) {
	msg := s.sanitizer.Sanitize(raw)
	if msg == "" {
		return "", model.NewValidationError(field + " is required")
	}
	if len([]rune(msg)) > maxMessageLength {
		return "", model.NewValidationError(fmt.Sprintf("%s must be at most %d characters", field, maxMessageLength))
	}
	return msg, nil
}

// Submit は問い合わせをpendingで作成する。送信時点のロールを記録する。
func (s *Service) Submit(ctx context.Context, user *model.User, message string) (*model.Inquiry, error) {
	msg, err := s.cleanMessage(message, "message")
	if err != nil {
		return nil, err
	}

	now := s.now()
	inq := &model.Inquiry{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		UserRole:  user.Role,
		Message:   msg,
		Status:    model.InquiryPending,
		Replies:   []model.InquiryReply{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, inq); err != nil {
		return nil, fmt.Errorf("問い合わせの作成に失敗しました: %w", err)
	}

	slog.Info("問い合わせを受け付けました",
		slog.String("inquiry_id", inq.ID),
		slog.String("user_id", user.ID),
	)
	return inq, nil
}

// ListMine は本人の未アーカイブの問い合わせを返す。
func (s *Service) ListMine(ctx context.Context, userID string) ([]*model.Inquiry, error) {
	all, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("問い合わせ一覧の取得に失敗しました: %w", err)
	}
	mine := make([]*model.Inquiry, 0, len(all))
	for _, inq := range all {
		if !inq.Archived {
			mine = append(mine, inq)
		}
	}
	return mine, nil
}

// List は管理者向けにアーカイブ状態を指定して問い合わせを返す。
func (s *Service) List(ctx context.Context, archived bool) ([]*model.Inquiry, error) {
	list, err := s.repo.List(ctx, archived)
	if err != nil {
		return nil, fmt.Errorf("問い合わせ一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// TransitionStatus は問い合わせのステータスを変更する。
func (s *Service) TransitionStatus(ctx context.Context, id, status string, actor *model.User) (*model.Inquiry, error) {
	to := model.InquiryStatus(status)
	if !to.IsValid() {
		return nil, model.NewInvalidStatusError(status)
	}

	inq, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	from := inq.Status
	if err := lifecycle.Inquiries.Validate(from, to); err != nil {
		return nil, err
	}

	now := s.now()
	inq.Status = to
	inq.UpdatedAt = now
	if err := s.repo.Update(ctx, inq); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewInquiryNotFoundError(id)
		}
		return nil, fmt.Errorf("問い合わせの更新に失敗しました: %w", err)
	}

	slog.Info("問い合わせのステータスを更新しました",
		slog.String("inquiry_id", id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor_id", actor.ID),
	)

	if from != to {
		s.metrics.RecordTransition(notify.KindInquiry, string(to))
		s.dispatcher.Dispatch(ctx, notify.Event{
			Kind:       notify.KindInquiry,
			RecordID:   inq.ID,
			UserID:     inq.UserID,
			Reference:  inq.ID,
			From:       string(from),
			To:         string(to),
			ChangedBy:  actor.ID,
			OccurredAt: now,
		})
	}
	return inq, nil
}

// Reply は管理者の返信を追加し、返信を含む最新の問い合わせを返す。
func (s *Service) Reply(ctx context.Context, id, message string, actor *model.User) (*model.Inquiry, error) {
	msg, err := s.cleanMessage(message, "reply message")
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewInquiryNotFoundError(id)
	}

	reply := &model.InquiryReply{
		ID:        uuid.New().String(),
		InquiryID: id,
		Message:   msg,
		RepliedBy: actor.ID,
		CreatedAt: s.now(),
	}
	if err := s.repo.AddReply(ctx, reply); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewInquiryNotFoundError(id)
		}
		return nil, fmt.Errorf("返信の追加に失敗しました: %w", err)
	}

	slog.Info("問い合わせに返信しました",
		slog.String("inquiry_id", id),
		slog.String("actor_id", actor.ID),
	)
	return s.find(ctx, id)
}

// Archive は問い合わせをアーカイブする。
func (s *Service) Archive(ctx context.Context, id string, actor *model.User) (*model.Inquiry, error) {
	return s.setArchived(ctx, id, actor, true)
}

// Restore はアーカイブを解除する。
func (s *Service) Restore(ctx context.Context, id string, actor *model.User) (*model.Inquiry, error) {
	return s.setArchived(ctx, id, actor, false)
}

func (s *Service) setArchived(ctx context.Context, id string, actor *model.User, archived bool) (*model.Inquiry, error) {
	inq, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	actorID := actor.ID
	inq.Archived = archived
	inq.UpdatedAt = now
	if archived {
		inq.ArchivedAt = &now
		inq.ArchivedBy = &actorID
	} else {
		inq.ArchivedAt = nil
		inq.ArchivedBy = nil
	}

	if err := s.repo.Update(ctx, inq); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewInquiryNotFoundError(id)
		}
		return nil, fmt.Errorf("アーカイブ状態の更新に失敗しました: %w", err)
	}

	slog.Info("問い合わせのアーカイブ状態を変更しました",
		slog.String("inquiry_id", id),
		slog.Bool("archived", archived),
		slog.String("actor_id", actor.ID),
	)
	return inq, nil
}

// ArchiveClosed はclosedの問い合わせを一括アーカイブする。
// actorIDがnilの場合はシステムによるアーカイブとして記録する。
func (s *Service) ArchiveClosed(ctx context.Context, actorID *string) (int64, error) {
	n, err := s.repo.ArchiveClosed(ctx, actorID)
	if err != nil {
		return 0, fmt.Errorf("問い合わせの一括アーカイブに失敗しました: %w", err)
	}
	if n > 0 {
		s.metrics.RecordArchived(notify.KindInquiry, n)
	}
	return n, nil
}

func (s *Service) find(ctx context.Context, id string) (*model.Inquiry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewInquiryNotFoundError(id)
	}
	inq, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("問い合わせの取得に失敗しました: %w", err)
	}
	if inq == nil {
		return nil, model.NewInquiryNotFoundError(id)
	}
	return inq, nil
}

// Package document は書類発行申請のドメインロジックを提供する。
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/hitoshi/schoolportal/internal/lifecycle"
	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/notify"
	"github.com/hitoshi/schoolportal/internal/repository"
	"github.com/hitoshi/schoolportal/internal/security"
)

// SubmitInput は書類申請の入力。
type SubmitInput struct {
	DocumentType        string `json:"documentType"`
	Purpose             string `json:"purpose"`
	Surname             string `json:"surname"`
	GivenName           string `json:"givenName"`
	MiddleName          string `json:"middleName"`
	DateOfBirth         string `json:"dateOfBirth"`
	Sex                 string `json:"sex"`
	StudentNumber       string `json:"studentNumber"`
	YearGraduated       string `json:"yearGraduated"`
	CurrentSchool       string `json:"currentSchool"`
	ContactNumber       string `json:"contactNumber"`
	PreferredPickupDate string `json:"preferredPickupDate"`
	PreferredPickupTime string `json:"preferredPickupTime"`
	AdditionalNotes     string `json:"additionalNotes"`
}

// Validate は必須項目と書類種別を検証する。
func (in SubmitInput) Validate() error {
	types := make([]interface{}, len(model.DocumentTypes))
	for i, t := range model.DocumentTypes {
		types[i] = t
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.DocumentType, validation.Required, validation.In(types...)),
		validation.Field(&in.Purpose, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.AdditionalNotes, validation.Length(0, 2000)),
	)
}

// StatusUpdate は管理者によるステータス変更の入力。
// nilの項目は変更しない。
type StatusUpdate struct {
	Status          string  `json:"status"`
	ReviewNotes     *string `json:"reviewNotes"`
	RejectionReason *string `json:"rejectionReason"`
	Priority        string  `json:"priority"`
}

// Dispatcher は通知配信のインターフェース。
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

// Service は書類申請のサービス層。
type Service struct {
	repo       repository.DocumentRequestRepository
	settings   repository.SettingsRepository
	sanitizer  security.TextSanitizer
	dispatcher Dispatcher
	metrics    metrics.MetricsCollector
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.DocumentRequestRepository,
	settings repository.SettingsRepository,
	sanitizer security.TextSanitizer,
	dispatcher Dispatcher,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		repo:       repo,
		settings:   settings,
		sanitizer:  sanitizer,
		dispatcher: dispatcher,
		metrics:    collector,
		now:        time.Now,
	}
}

// Submit は申請者本人の書類申請をpendingで作成する。
// 未完了の申請がmaxRequestsPerUserに達している場合は拒否する。
func (s *Service) Submit(ctx context.Context, userID string, in SubmitInput) (*model.DocumentRequest, error) {
	in.DocumentType = strings.TrimSpace(in.DocumentType)
	in.Purpose = strings.TrimSpace(in.Purpose)
	if err := in.Validate(); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}

	if settings.MaxRequestsPerUser > 0 {
		active, err := s.repo.CountActiveByUserID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("未完了申請数の取得に失敗しました: %w", err)
		}
		if active >= settings.MaxRequestsPerUser {
			return nil, model.NewRequestLimitReachedError(settings.MaxRequestsPerUser)
		}
	}

	now := s.now()
	req := &model.DocumentRequest{
		ID:                  uuid.New().String(),
		UserID:              userID,
		DocumentType:        in.DocumentType,
		Purpose:             s.sanitizer.Sanitize(in.Purpose),
		Surname:             strings.TrimSpace(in.Surname),
		GivenName:           strings.TrimSpace(in.GivenName),
		MiddleName:          strings.TrimSpace(in.MiddleName),
		DateOfBirth:         strings.TrimSpace(in.DateOfBirth),
		Sex:                 strings.TrimSpace(in.Sex),
		StudentNumber:       strings.TrimSpace(in.StudentNumber),
		YearGraduated:       strings.TrimSpace(in.YearGraduated),
		CurrentSchool:       strings.TrimSpace(in.CurrentSchool),
		ContactNumber:       strings.TrimSpace(in.ContactNumber),
		PreferredPickupDate: strings.TrimSpace(in.PreferredPickupDate),
		PreferredPickupTime: strings.TrimSpace(in.PreferredPickupTime),
		AdditionalNotes:     s.sanitizer.Sanitize(in.AdditionalNotes),
		Status:              model.DocumentPending,
		Priority:            model.PriorityNormal,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if settings.DocumentProcessingDays > 0 {
		eta := now.AddDate(0, 0, settings.DocumentProcessingDays)
		req.EstimatedCompletionAt = &eta
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("書類申請の作成に失敗しました: %w", err)
	}

	slog.Info("書類申請を受け付けました",
		slog.String("request_id", req.ID),
		slog.String("user_id", userID),
		slog.String("document_type", req.DocumentType),
	)
	return req, nil
}

// ListMine は申請者本人の申請一覧を返す。
func (s *Service) ListMine(ctx context.Context, userID string) ([]*model.DocumentRequest, error) {
	reqs, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("申請一覧の取得に失敗しました: %w", err)
	}
	return reqs, nil
}

// GetOwned は申請者本人の申請を返す。他人の申請は存在しないものとして扱う。
func (s *Service) GetOwned(ctx context.Context, userID, id string) (*model.DocumentRequest, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, model.NewRequestNotFoundError(id)
	}
	return req, nil
}

// List は管理者向けにアーカイブ状態を指定して全申請を返す。
func (s *Service) List(ctx context.Context, archived bool) ([]*model.DocumentRequest, error) {
	reqs, err := s.repo.List(ctx, archived)
	if err != nil {
		return nil, fmt.Errorf("申請一覧の取得に失敗しました: %w", err)
	}
	return reqs, nil
}

// TransitionStatus はステータスと管理者項目を更新する。
// completedにした申請は完了日時を記録し、自動的にアーカイブする。
func (s *Service) TransitionStatus(ctx context.Context, id string, upd StatusUpdate, actor *model.User) (*model.DocumentRequest, error) {
	to := model.DocumentStatus(strings.TrimSpace(upd.Status))
	if !to.IsValid() {
		return nil, model.NewInvalidStatusError(upd.Status)
	}
	var priority model.Priority
	if upd.Priority != "" {
		priority = model.Priority(upd.Priority)
		if priority != model.PriorityNormal && priority != model.PriorityHigh {
			return nil, model.NewValidationError(fmt.Sprintf("Invalid priority: %s", upd.Priority))
		}
	}

	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	from := req.Status
	if err := lifecycle.Documents.Validate(from, to); err != nil {
		return nil, err
	}

	now := s.now()
	actorID := actor.ID
	req.Status = to
	req.ReviewedBy = &actorID
	req.ReviewedAt = &now
	req.UpdatedAt = now
	if priority != "" {
		req.Priority = priority
	}
	if upd.ReviewNotes != nil {
		req.ReviewNotes = s.sanitizer.Sanitize(*upd.ReviewNotes)
	}
	if to == model.DocumentRejected && upd.RejectionReason != nil {
		req.RejectionReason = s.sanitizer.Sanitize(*upd.RejectionReason)
	}
	if to == model.DocumentCompleted && from != model.DocumentCompleted {
		req.CompletedAt = &now
		req.Archived = true
		req.ArchivedAt = &now
		req.ArchivedBy = &actorID
	}

	if err := s.repo.Update(ctx, req); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewRequestNotFoundError(id)
		}
		return nil, fmt.Errorf("書類申請の更新に失敗しました: %w", err)
	}

	slog.Info("書類申請のステータスを更新しました",
		slog.String("request_id", req.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor_id", actor.ID),
	)

	if from != to {
		s.metrics.RecordTransition(notify.KindDocument, string(to))
		s.dispatcher.Dispatch(ctx, notify.Event{
			Kind:       notify.KindDocument,
			RecordID:   req.ID,
			UserID:     req.UserID,
			Reference:  req.DocumentType,
			From:       string(from),
			To:         string(to),
			Note:       noteFor(req),
			ChangedBy:  actor.ID,
			OccurredAt: now,
		})
	}
	return req, nil
}

// Archive は申請をアーカイブする。
func (s *Service) Archive(ctx context.Context, id string, actor *model.User) (*model.DocumentRequest, error) {
	return s.setArchived(ctx, id, actor, true)
}

// Restore はアーカイブを解除する。
func (s *Service) Restore(ctx context.Context, id string, actor *model.User) (*model.DocumentRequest, error) {
	return s.setArchived(ctx, id, actor, false)
}

func (s *Service) setArchived(ctx context.Context, id string, actor *model.User, archived bool) (*model.DocumentRequest, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	actorID := actor.ID
	req.Archived = archived
	req.UpdatedAt = now
	if archived {
		req.ArchivedAt = &now
		req.ArchivedBy = &actorID
	} else {
		req.ArchivedAt = nil
		req.ArchivedBy = nil
	}

	if err := s.repo.Update(ctx, req); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewRequestNotFoundError(id)
		}
		return nil, fmt.Errorf("アーカイブ状態の更新に失敗しました: %w", err)
	}

	slog.Info("書類申請のアーカイブ状態を変更しました",
		slog.String("request_id", id),
		slog.Bool("archived", archived),
		slog.String("actor_id", actor.ID),
	)
	return req, nil
}

// BulkArchiveCompleted は未アーカイブの完了済み申請を全てアーカイブし、件数を返す。
func (s *Service) BulkArchiveCompleted(ctx context.Context, actor *model.User) (int64, error) {
	actorID := actor.ID
	n, err := s.repo.ArchiveCompleted(ctx, &actorID, s.now())
	if err != nil {
		return 0, fmt.Errorf("完了済み申請の一括アーカイブに失敗しました: %w", err)
	}
	s.metrics.RecordArchived(notify.KindDocument, n)
	slog.Info("完了済み申請を一括アーカイブしました",
		slog.Int64("count", n),
		slog.String("actor_id", actor.ID),
	)
	return n, nil
}

// find はIDで申請を取得する。UUIDとして不正なIDは未検出として扱う。
func (s *Service) find(ctx context.Context, id string) (*model.DocumentRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewRequestNotFoundError(id)
	}
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("書類申請の取得に失敗しました: %w", err)
	}
	if req == nil {
		return nil, model.NewRequestNotFoundError(id)
	}
	return req, nil
}

func noteFor(req *model.DocumentRequest) string {
	if req.Status == model.DocumentRejected && req.RejectionReason != "" {
		return req.RejectionReason
	}
	return req.ReviewNotes
}

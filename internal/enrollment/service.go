// Package enrollment は入学申請のドメインロジックを提供する。
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
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

// maxNumberAttempts は入学番号の衝突時に再生成する回数の上限。
const maxNumberAttempts = 5

// SubmitInput は入学申請の入力。付帯情報はJSON上で同じ階層に並ぶ。
type SubmitInput struct {
	EnrollmentType         string `json:"enrollmentType"`
	LearnerReferenceNumber string `json:"learnerReferenceNumber"`
	Surname                string `json:"surname"`
	FirstName              string `json:"firstName"`
	MiddleName             string `json:"middleName"`
	Extension              string `json:"extension"`
	DateOfBirth            string `json:"dateOfBirth"`
	Sex                    string `json:"sex"`
	Age                    string `json:"age"`
	ContactNumber          string `json:"contactNumber"`
	EmailAddress           string `json:"emailAddress"`
	LastSchoolAttended     string `json:"lastSchoolAttended"`
	GradeToEnroll          string `json:"gradeToEnroll"`
	Track                  string `json:"track"`

	model.EnrollmentDetails
}

// Validate は必須項目と入学区分を検証する。
func (in SubmitInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.EnrollmentType, validation.Required,
			validation.In(model.EnrollmentTypeNew, model.EnrollmentTypeOld, model.EnrollmentTypeTransferee)),
		validation.Field(&in.Surname, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.GradeToEnroll, validation.Required),
		validation.Field(&in.LearnerReferenceNumber, validation.Length(0, 20)),
	)
}

// StatusUpdate は管理者によるステータス変更の入力。
// nilの項目は変更しない。
type StatusUpdate struct {
	Status          string  `json:"status"`
	Section         *string `json:"section"`
	ReviewNotes     *string `json:"reviewNotes"`
	RejectionReason *string `json:"rejectionReason"`
}

// Dispatcher は通知配信のインターフェース。
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

// Service は入学申請のサービス層。
type Service struct {
	repo       repository.EnrollmentRepository
	sanitizer  security.TextSanitizer
	dispatcher Dispatcher
	metrics    metrics.MetricsCollector
	now        func() time.Time
	randN      func(n int) int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.EnrollmentRepository,
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
		randN:      rand.IntN,
	}
}

// Submit は申請者本人の入学申請をpendingで作成し、入学番号を採番する。
func (s *Service) Submit(ctx context.Context, userID string, in SubmitInput) (*model.Enrollment, error) {
	in.EnrollmentType = strings.ToLower(strings.TrimSpace(in.EnrollmentType))
	in.Surname = strings.TrimSpace(in.Surname)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.GradeToEnroll = model.NormalizeGradeLevel(in.GradeToEnroll)
	if err := in.Validate(); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	now := s.now()
	details := in.EnrollmentDetails
	details.SpecialNeeds = s.sanitizer.Sanitize(details.SpecialNeeds)
	details.Allergies = s.sanitizer.Sanitize(details.Allergies)
	details.Medications = s.sanitizer.Sanitize(details.Medications)

	e := &model.Enrollment{
		ID:                     uuid.New().String(),
		UserID:                 userID,
		EnrollmentType:         in.EnrollmentType,
		LearnerReferenceNumber: strings.TrimSpace(in.LearnerReferenceNumber),
		Surname:                in.Surname,
		FirstName:              in.FirstName,
		MiddleName:             strings.TrimSpace(in.MiddleName),
		Extension:              strings.TrimSpace(in.Extension),
		DateOfBirth:            strings.TrimSpace(in.DateOfBirth),
		Sex:                    strings.TrimSpace(in.Sex),
		Age:                    strings.TrimSpace(in.Age),
		ContactNumber:          strings.TrimSpace(in.ContactNumber),
		EmailAddress:           model.NormalizeEmail(in.EmailAddress),
		LastSchoolAttended:     strings.TrimSpace(in.LastSchoolAttended),
		GradeToEnroll:          in.GradeToEnroll,
		Track:                  strings.TrimSpace(in.Track),
		Details:                details,
		Status:                 model.EnrollmentPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	var err error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		e.EnrollmentNumber = s.enrollmentNumber(now)
		err = s.repo.Create(ctx, e)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		slog.Warn("入学番号が重複したため再採番します", slog.String("enrollment_number", e.EnrollmentNumber))
	}
	if err != nil {
		return nil, fmt.Errorf("入学申請の作成に失敗しました: %w", err)
	}

	slog.Info("入学申請を受け付けました",
		slog.String("enrollment_id", e.ID),
		slog.String("enrollment_number", e.EnrollmentNumber),
		slog.String("user_id", userID),
		slog.String("grade", e.GradeToEnroll),
	)
	return e, nil
}

// enrollmentNumber は ENR-<西暦>-<4桁> 形式の番号を生成する。
func (s *Service) enrollmentNumber(now time.Time) string {
	return fmt.Sprintf("ENR-%d-%04d", now.Year(), s.randN(10000))
}

// MyStatus は申請者本人の最新の入学申請を返す。未申請の場合はnil。
func (s *Service) MyStatus(ctx context.Context, userID string) (*model.Enrollment, error) {
	e, err := s.repo.FindLatestByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("入学申請の取得に失敗しました: %w", err)
	}
	return e, nil
}

// List は管理者向けにアーカイブ状態を指定して全申請を返す。
func (s *Service) List(ctx context.Context, archived bool) ([]*model.Enrollment, error) {
	list, err := s.repo.List(ctx, archived)
	if err != nil {
		return nil, fmt.Errorf("入学申請一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// ListBySection はセクション名と学年が一致する申請を返す。
// セクション名は前後の空白を除いて大文字小文字を区別せずに比較する。
func (s *Service) ListBySection(ctx context.Context, section, gradeLevel string) ([]*model.Enrollment, error) {
	section = model.NormalizeSectionName(section)
	gradeLevel = model.NormalizeGradeLevel(gradeLevel)
	if section == "" {
		return nil, model.NewValidationError("section is required")
	}
	if gradeLevel == "" {
		return nil, model.NewValidationError("gradeLevel is required")
	}

	list, err := s.repo.ListBySection(ctx, section, gradeLevel)
	if err != nil {
		return nil, fmt.Errorf("セクション別入学申請の取得に失敗しました: %w", err)
	}
	return list, nil
}

// ListByGrade は学年が一致する申請を返す。
func (s *Service) ListByGrade(ctx context.Context, gradeLevel string) ([]*model.Enrollment, error) {
	gradeLevel = model.NormalizeGradeLevel(gradeLevel)
	if gradeLevel == "" {
		return nil, model.NewValidationError("gradeLevel is required")
	}

	list, err := s.repo.ListByGrade(ctx, gradeLevel)
	if err != nil {
		return nil, fmt.Errorf("学年別入学申請の取得に失敗しました: %w", err)
	}
	return list, nil
}

// TransitionStatus はステータス・セクション・管理者項目を更新する。
// enrolledにするにはセクションが割り当て済みであること。
func (s *Service) TransitionStatus(ctx context.Context, id string, upd StatusUpdate, actor *model.User) (*model.Enrollment, error) {
	to := model.EnrollmentStatus(strings.TrimSpace(upd.Status))
	if !to.IsValid() {
		return nil, model.NewInvalidStatusError(upd.Status)
	}

	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	from := e.Status
	if err := lifecycle.Enrollments.Validate(from, to); err != nil {
		return nil, err
	}

	if upd.Section != nil {
		e.Section = model.NormalizeSectionName(*upd.Section)
	}
	if to == model.EnrollmentEnrolled && e.Section == "" {
		return nil, model.NewValidationError("A section must be assigned before enrolling.")
	}

	now := s.now()
	actorID := actor.ID
	e.Status = to
	e.ReviewedBy = &actorID
	e.ReviewedAt = &now
	e.UpdatedAt = now
	if upd.ReviewNotes != nil {
		e.ReviewNotes = s.sanitizer.Sanitize(*upd.ReviewNotes)
	}
	if to == model.EnrollmentRejected && upd.RejectionReason != nil {
		e.RejectionReason = s.sanitizer.Sanitize(*upd.RejectionReason)
	}

	if err := s.repo.Update(ctx, e); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewEnrollmentNotFoundError(id)
		}
		return nil, fmt.Errorf("入学申請の更新に失敗しました: %w", err)
	}

	slog.Info("入学申請のステータスを更新しました",
		slog.String("enrollment_id", e.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("section", e.Section),
		slog.String("actor_id", actor.ID),
	)

	if from != to {
		note := e.ReviewNotes
		if to == model.EnrollmentRejected && e.RejectionReason != "" {
			note = e.RejectionReason
		}
		s.metrics.RecordTransition(notify.KindEnrollment, string(to))
		s.dispatcher.Dispatch(ctx, notify.Event{
			Kind:       notify.KindEnrollment,
			RecordID:   e.ID,
			UserID:     e.UserID,
			Reference:  e.EnrollmentNumber,
			From:       string(from),
			To:         string(to),
			Note:       note,
			ChangedBy:  actor.ID,
			OccurredAt: now,
		})
	}
	return e, nil
}

// Archive は申請をアーカイブする。
func (s *Service) Archive(ctx context.Context, id string, actor *model.User) (*model.Enrollment, error) {
	return s.setArchived(ctx, id, actor, true)
}

// Restore はアーカイブを解除する。
func (s *Service) Restore(ctx context.Context, id string, actor *model.User) (*model.Enrollment, error) {
	return s.setArchived(ctx, id, actor, false)
}

func (s *Service) setArchived(ctx context.Context, id string, actor *model.User, archived bool) (*model.Enrollment, error) {
	e, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	actorID := actor.ID
	e.Archived = archived
	e.UpdatedAt = now
	if archived {
		e.ArchivedAt = &now
		e.ArchivedBy = &actorID
	} else {
		e.ArchivedAt = nil
		e.ArchivedBy = nil
	}

	if err := s.repo.Update(ctx, e); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewEnrollmentNotFoundError(id)
		}
		return nil, fmt.Errorf("アーカイブ状態の更新に失敗しました: %w", err)
	}

	slog.Info("入学申請のアーカイブ状態を変更しました",
		slog.String("enrollment_id", id),
		slog.Bool("archived", archived),
		slog.String("actor_id", actor.ID),
	)
	return e, nil
}

// find はIDで申請を取得する。UUIDとして不正なIDは未検出として扱う。
func (s *Service) find(ctx context.Context, id string) (*model.Enrollment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewEnrollmentNotFoundError(id)
	}
	e, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("入学申請の取得に失敗しました: %w", err)
	}
	if e == nil {
		return nil, model.NewEnrollmentNotFoundError(id)
	}
	return e, nil
}

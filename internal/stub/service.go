// Package stub はForm 137/138の受取票のドメインロジックを提供する。
package stub

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

	"github.com/hitoshi/schoolportal/internal/access"
	"github.com/hitoshi/schoolportal/internal/lifecycle"
	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/notify"
	"github.com/hitoshi/schoolportal/internal/repository"
	"github.com/hitoshi/schoolportal/internal/security"
)

// maxCodeAttempts は受取票コードの衝突時に再生成する回数の上限。
const maxCodeAttempts = 5

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// StatusAll は管理者一覧でステータスを絞り込まない指定。
const StatusAll = "all"

// CreateInput は受取票の作成入力。
// Form 137とForm 138で必須項目が異なる。
type CreateInput struct {
	Surname                string `json:"surname"`
	FirstName              string `json:"firstName"`
	MiddleName             string `json:"middleName"`
	Sex                    string `json:"sex"`
	DateOfBirth            string `json:"dateOfBirth"`
	PlaceOfBirth           string `json:"placeOfBirth"`
	Barangay               string `json:"barangay"`
	City                   string `json:"city"`
	Province               string `json:"province"`
	LearnerReferenceNumber string `json:"learnerReferenceNumber"`
	GradeLevel             string `json:"gradeLevel"`
	SchoolYear             string `json:"schoolYear"`
	Section                string `json:"section"`
	Adviser                string `json:"adviser"`
	NumberOfCopies         string `json:"numberOfCopies"`
	ReceivingSchool        string `json:"receivingSchool"`
	ReceivingSchoolAddress string `json:"receivingSchoolAddress"`
	Purpose                string `json:"purpose"`
	ParentGuardianName     string `json:"parentGuardianName"`
	ParentGuardianAddress  string `json:"parentGuardianAddress"`
	ParentGuardianContact  string `json:"parentGuardianContact"`
}

// validate は書類種別ごとの必須項目を検証する。
// LRNと転出先はForm 137でのみ必須。
func (in CreateInput) validate(form model.StubForm) error {
	lrnRules := []validation.Rule{validation.Length(0, 20)}
	var receivingRules []validation.Rule
	if form == model.StubForm137 {
		lrnRules = append(lrnRules, validation.Required)
		receivingRules = append(receivingRules, validation.Required)
	}

	return validation.ValidateStruct(&in,
		validation.Field(&in.Surname, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Sex, validation.Required),
		validation.Field(&in.DateOfBirth, validation.Required),
		validation.Field(&in.Barangay, validation.Required),
		validation.Field(&in.City, validation.Required),
		validation.Field(&in.Province, validation.Required),
		validation.Field(&in.LearnerReferenceNumber, lrnRules...),
		validation.Field(&in.GradeLevel, validation.Required),
		validation.Field(&in.SchoolYear, validation.Required),
		validation.Field(&in.ReceivingSchool, receivingRules...),
		validation.Field(&in.Purpose, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.ParentGuardianName, validation.Required),
		validation.Field(&in.ParentGuardianAddress, validation.Required),
	)
}

func (in *CreateInput) trim() {
	for _, p := range []*string{
		&in.Surname, &in.FirstName, &in.MiddleName, &in.Sex, &in.DateOfBirth, &in.PlaceOfBirth,
		&in.Barangay, &in.City, &in.Province, &in.LearnerReferenceNumber, &in.SchoolYear,
		&in.Section, &in.Adviser, &in.NumberOfCopies, &in.ReceivingSchool, &in.ReceivingSchoolAddress,
		&in.Purpose, &in.ParentGuardianName, &in.ParentGuardianAddress, &in.ParentGuardianContact,
	} {
		*p = strings.TrimSpace(*p)
	}
	in.GradeLevel = model.NormalizeGradeLevel(in.GradeLevel)
}

// StatusUpdate は窓口によるステータス変更の入力。
type StatusUpdate struct {
	Status         string  `json:"status"`
	RegistrarNotes *string `json:"registrarNotes"`
}

// Dispatcher は通知配信のインターフェース。
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

// Service は受取票のサービス層。
type Service struct {
	repo       repository.StubRepository
	sanitizer  security.TextSanitizer
	dispatcher Dispatcher
	metrics    metrics.MetricsCollector
	now        func() time.Time
	randN      func(n int) int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.StubRepository,
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

// Create は本人の受取票をstub-generatedで作成し、受取票コードを採番する。
func (s *Service) Create(ctx context.Context, userID string, form model.StubForm, in CreateInput) (*model.PickupStub, error) {
	if !form.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("unknown form: %s", form))
	}
	in.trim()
	if err := in.validate(form); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	now := s.now()
	st := &model.PickupStub{
		ID:                     uuid.New().String(),
		UserID:                 userID,
		Form:                   form,
		Surname:                in.Surname,
		FirstName:              in.FirstName,
		MiddleName:             in.MiddleName,
		Sex:                    in.Sex,
		DateOfBirth:            in.DateOfBirth,
		LearnerReferenceNumber: in.LearnerReferenceNumber,
		GradeLevel:             in.GradeLevel,
		SchoolYear:             in.SchoolYear,
		Purpose:                s.sanitizer.Sanitize(in.Purpose),
		Details: model.StubDetails{
			PlaceOfBirth:           in.PlaceOfBirth,
			Barangay:               in.Barangay,
			City:                   in.City,
			Province:               in.Province,
			ReceivingSchool:        in.ReceivingSchool,
			ReceivingSchoolAddress: in.ReceivingSchoolAddress,
			Section:                in.Section,
			Adviser:                in.Adviser,
			NumberOfCopies:         in.NumberOfCopies,
			ParentGuardianName:     in.ParentGuardianName,
			ParentGuardianAddress:  in.ParentGuardianAddress,
			ParentGuardianContact:  in.ParentGuardianContact,
		},
		Status:    model.StubGenerated,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		st.StubCode = s.stubCode(form, now)
		err = s.repo.Create(ctx, st)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		slog.Warn("受取票コードが重複したため再採番します", slog.String("stub_code", st.StubCode))
	}
	if err != nil {
		return nil, fmt.Errorf("受取票の作成に失敗しました: %w", err)
	}

	slog.Info("受取票を発行しました",
		slog.String("stub_id", st.ID),
		slog.String("stub_code", st.StubCode),
		slog.String("form", string(form)),
		slog.String("user_id", userID),
	)
	return st, nil
}

// stubCode は <接頭辞>-<ミリ秒時刻の下6桁>-<英数字6文字> 形式のコードを生成する。
func (s *Service) stubCode(form model.StubForm, now time.Time) string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteByte(codeAlphabet[s.randN(len(codeAlphabet))])
	}
	return fmt.Sprintf("%s-%06d-%s", form.CodePrefix(), now.UnixMilli()%1_000_000, b.String())
}

// ListMine は本人の受取票を新しい順に返す。
func (s *Service) ListMine(ctx context.Context, userID string, form model.StubForm) ([]*model.PickupStub, error) {
	list, err := s.repo.ListByUserID(ctx, form, userID)
	if err != nil {
		return nil, fmt.Errorf("受取票一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// Get は受取票を返す。本人または照合権限を持つ管理者以外には未検出として扱う。
func (s *Service) Get(ctx context.Context, form model.StubForm, id string, user *model.User) (*model.PickupStub, error) {
	st, err := s.find(ctx, form, id)
	if err != nil {
		return nil, err
	}
	if st.UserID != user.ID && !access.CanAccessFeature(user.Role, access.FeatureQRVerification) {
		return nil, model.NewStubNotFoundError(id)
	}
	return st, nil
}

// List は管理者向けに受取票を返す。status が空または "all" の場合は絞り込まない。
func (s *Service) List(ctx context.Context, form model.StubForm, status, search string) ([]*model.PickupStub, error) {
	var filter model.StubFilter
	status = strings.TrimSpace(status)
	if status != "" && status != StatusAll {
		filter.Status = model.StubStatus(status)
		if !filter.Status.IsValid() {
			return nil, model.NewInvalidStatusError(status)
		}
	}
	filter.Search = strings.TrimSpace(search)

	list, err := s.repo.List(ctx, form, filter)
	if err != nil {
		return nil, fmt.Errorf("受取票一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// TransitionStatus はステータスを変更し、到達したステータスの時刻を記録する。
func (s *Service) TransitionStatus(ctx context.Context, form model.StubForm, id string, upd StatusUpdate, actor *model.User) (*model.PickupStub, error) {
	to := model.StubStatus(strings.TrimSpace(upd.Status))
	if !to.IsValid() {
		return nil, model.NewInvalidStatusError(upd.Status)
	}

	st, err := s.find(ctx, form, id)
	if err != nil {
		return nil, err
	}

	from := st.Status
	if err := lifecycle.Stubs.Validate(from, to); err != nil {
		return nil, err
	}

	now := s.now()
	st.Status = to
	st.UpdatedAt = now
	if upd.RegistrarNotes != nil {
		st.RegistrarNotes = s.sanitizer.Sanitize(*upd.RegistrarNotes)
	}
	if from != to {
		switch to {
		case model.StubSubmitted:
			st.SubmittedAt = &now
		case model.StubVerified:
			actorID := actor.ID
			st.VerifiedAt = &now
			st.VerifiedBy = &actorID
		case model.StubReady:
			st.ReadyAt = &now
		case model.StubCompleted:
			st.CompletedAt = &now
		}
	}

	if err := s.repo.Update(ctx, st); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewStubNotFoundError(id)
		}
		return nil, fmt.Errorf("受取票の更新に失敗しました: %w", err)
	}

	slog.Info("受取票のステータスを更新しました",
		slog.String("stub_id", st.ID),
		slog.String("stub_code", st.StubCode),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor_id", actor.ID),
	)

	if from != to {
		s.metrics.RecordTransition(notify.KindStub, string(to))
		s.dispatcher.Dispatch(ctx, notify.Event{
			Kind:       notify.KindStub,
			RecordID:   st.ID,
			UserID:     st.UserID,
			Reference:  st.StubCode,
			From:       string(from),
			To:         string(to),
			Note:       st.RegistrarNotes,
			ChangedBy:  actor.ID,
			OccurredAt: now,
		})
	}
	return st, nil
}

// Verify は窓口で提示された受取票コードを照合する。
// 別の書類種別のコードは未検出として扱う。
func (s *Service) Verify(ctx context.Context, form model.StubForm, code string) (*model.PickupStub, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, model.NewStubNotFoundError(code)
	}
	st, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("受取票の照合に失敗しました: %w", err)
	}
	if st == nil || st.Form != form {
		return nil, model.NewStubNotFoundError(code)
	}
	return st, nil
}

// find はIDで受取票を取得する。UUIDとして不正なIDや別の書類種別は未検出として扱う。
func (s *Service) find(ctx context.Context, form model.StubForm, id string) (*model.PickupStub, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewStubNotFoundError(id)
	}
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("受取票の取得に失敗しました: %w", err)
	}
	if st == nil || st.Form != form {
		return nil, model.NewStubNotFoundError(id)
	}
	return st, nil
}

// Package section はクラス編成（セクション）の管理を提供する。
package section

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/repository"
)

// CreateInput はセクション作成の入力。Capacityが0の場合は既定値を使う。
type CreateInput struct {
	Name       string `json:"name"`
	GradeLevel string `json:"gradeLevel"`
	Adviser    string `json:"adviser"`
	Capacity   int    `json:"capacity"`
}

// Validate は必須項目と定員の範囲を検証する。
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.GradeLevel, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.Adviser, validation.Length(0, 200)),
		validation.Field(&in.Capacity, validation.Min(0), validation.Max(500)),
	)
}

// Service はセクションのサービス層。
type Service struct {
	repo repository.SectionRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SectionRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create はセクションを作成する。同じ学年に同名のセクションがある場合はDuplicateSectionを返す。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Section, error) {
	in.Name = model.NormalizeSectionName(in.Name)
	in.GradeLevel = model.NormalizeGradeLevel(in.GradeLevel)
	in.Adviser = strings.TrimSpace(in.Adviser)
	if err := in.Validate(); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	capacity := in.Capacity
	if capacity == 0 {
		capacity = model.DefaultSectionCapacity
	}

	sec := &model.Section{
		ID:         uuid.New().String(),
		Name:       in.Name,
		GradeLevel: in.GradeLevel,
		Adviser:    in.Adviser,
		Capacity:   capacity,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, sec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateSectionError(sec.Name, sec.GradeLevel)
		}
		return nil, fmt.Errorf("セクションの作成に失敗しました: %w", err)
	}

	slog.Info("セクションを作成しました",
		slog.String("section_id", sec.ID),
		slog.String("name", sec.Name),
		slog.String("grade", sec.GradeLevel),
	)
	return sec, nil
}

// List は全セクションを返す。
func (s *Service) List(ctx context.Context) ([]*model.Section, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("セクション一覧の取得に失敗しました: %w", err)
	}
	return list, nil
}

// ListByGrade は学年が一致するセクションを返す。
func (s *Service) ListByGrade(ctx context.Context, gradeLevel string) ([]*model.Section, error) {
	gradeLevel = model.NormalizeGradeLevel(gradeLevel)
	if gradeLevel == "" {
		return nil, model.NewValidationError("gradeLevel is required")
	}
	list, err := s.repo.ListByGrade(ctx, gradeLevel)
	if err != nil {
		return nil, fmt.Errorf("学年別セクションの取得に失敗しました: %w", err)
	}
	return list, nil
}

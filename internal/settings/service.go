// Package settings は学校設定（シングルトン）の参照と更新を提供する。
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/repository"
)

// Public は未ログインでも参照できる設定項目。
type Public struct {
	SchoolName             string `json:"schoolName"`
	SchoolAddress          string `json:"schoolAddress"`
	SchoolEmail            string `json:"schoolEmail"`
	SchoolPhone            string `json:"schoolPhone"`
	AcademicYear           string `json:"academicYear"`
	DocumentProcessingDays int    `json:"documentProcessingDays"`
	MaxRequestsPerUser     int    `json:"maxRequestsPerUser"`
}

// UpdateInput は設定の部分更新。nilの項目は現在値を維持する。
type UpdateInput struct {
	SchoolName                   *string `json:"schoolName"`
	SchoolAddress                *string `json:"schoolAddress"`
	SchoolEmail                  *string `json:"schoolEmail"`
	SchoolPhone                  *string `json:"schoolPhone"`
	AcademicYear                 *string `json:"academicYear"`
	DocumentProcessingDays       *int    `json:"documentProcessingDays"`
	MaxRequestsPerUser           *int    `json:"maxRequestsPerUser"`
	AutoArchiveCompletedRequests *bool   `json:"autoArchiveCompletedRequests"`
	AutoArchiveDays              *int    `json:"autoArchiveDays"`
	StatusUpdateNotifications    *bool   `json:"statusUpdateNotifications"`
}

// Validate は指定された項目の値域を検証する。
func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SchoolName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&in.SchoolEmail, validation.NilOrNotEmpty, is.Email),
		validation.Field(&in.AcademicYear, validation.NilOrNotEmpty, validation.Length(1, 20)),
		validation.Field(&in.DocumentProcessingDays, validation.NilOrNotEmpty, validation.Min(1), validation.Max(30)),
		validation.Field(&in.MaxRequestsPerUser, validation.NilOrNotEmpty, validation.Min(1), validation.Max(20)),
		validation.Field(&in.AutoArchiveDays, validation.NilOrNotEmpty, validation.Min(1), validation.Max(365)),
	)
}

// Service は学校設定のサービス層。
type Service struct {
	repo repository.SettingsRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SettingsRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Get は全設定を返す。
func (s *Service) Get(ctx context.Context) (*model.Settings, error) {
	st, err := s.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	return st, nil
}

// Public は公開可能な設定項目のみを返す。
func (s *Service) Public(ctx context.Context) (*Public, error) {
	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &Public{
		SchoolName:             st.SchoolName,
		SchoolAddress:          st.SchoolAddress,
		SchoolEmail:            st.SchoolEmail,
		SchoolPhone:            st.SchoolPhone,
		AcademicYear:           st.AcademicYear,
		DocumentProcessingDays: st.DocumentProcessingDays,
		MaxRequestsPerUser:     st.MaxRequestsPerUser,
	}, nil
}

// Update は指定された項目だけを上書きし、更新者と更新日時を記録する。
func (s *Service) Update(ctx context.Context, in UpdateInput, actor *model.User) (*model.Settings, error) {
	trim(in.SchoolName)
	trim(in.SchoolAddress)
	trim(in.SchoolEmail)
	trim(in.SchoolPhone)
	trim(in.AcademicYear)
	if err := in.Validate(); err != nil {
		return nil, model.NewValidationError(err.Error())
	}

	st, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	setString(&st.SchoolName, in.SchoolName)
	setString(&st.SchoolAddress, in.SchoolAddress)
	setString(&st.SchoolEmail, in.SchoolEmail)
	setString(&st.SchoolPhone, in.SchoolPhone)
	setString(&st.AcademicYear, in.AcademicYear)
	if in.DocumentProcessingDays != nil {
		st.DocumentProcessingDays = *in.DocumentProcessingDays
	}
	if in.MaxRequestsPerUser != nil {
		st.MaxRequestsPerUser = *in.MaxRequestsPerUser
	}
	if in.AutoArchiveCompletedRequests != nil {
		st.AutoArchiveCompletedRequests = *in.AutoArchiveCompletedRequests
	}
	if in.AutoArchiveDays != nil {
		st.AutoArchiveDays = *in.AutoArchiveDays
	}
	if in.StatusUpdateNotifications != nil {
		st.StatusUpdateNotifications = *in.StatusUpdateNotifications
	}

	actorID := actor.ID
	st.UpdatedBy = &actorID
	st.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, st); err != nil {
		return nil, fmt.Errorf("設定の更新に失敗しました: %w", err)
	}

	slog.Info("学校設定を更新しました", slog.String("actor_id", actor.ID))
	return st, nil
}

func trim(p *string) {
	if p != nil {
		*p = strings.TrimSpace(*p)
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/schoolportal/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用した学校設定リポジトリ。
// settingsテーブルはid=1の1行のみを持つ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// Get は現在の設定を返す。行が存在しない場合は既定値を返す。
func (r *PostgresSettingsRepo) Get(ctx context.Context) (*model.Settings, error) {
	s := &model.Settings{}
	err := r.db.QueryRowContext(ctx,
		`SELECT school_name, school_address, school_email, school_phone, academic_year,
		        document_processing_days, max_requests_per_user,
		        auto_archive_completed_requests, auto_archive_days, status_update_notifications,
		        updated_by, updated_at
		 FROM settings WHERE id = 1`,
	).Scan(
		&s.SchoolName, &s.SchoolAddress, &s.SchoolEmail, &s.SchoolPhone, &s.AcademicYear,
		&s.DocumentProcessingDays, &s.MaxRequestsPerUser,
		&s.AutoArchiveCompletedRequests, &s.AutoArchiveDays, &s.StatusUpdateNotifications,
		&s.UpdatedBy, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return s, nil
}

// Update は設定を上書きする（行がなければ作成する）。
func (r *PostgresSettingsRepo) Update(ctx context.Context, s *model.Settings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (id, school_name, school_address, school_email, school_phone, academic_year,
		        document_processing_days, max_requests_per_user,
		        auto_archive_completed_requests, auto_archive_days, status_update_notifications,
		        updated_by, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		        school_name = EXCLUDED.school_name,
		        school_address = EXCLUDED.school_address,
		        school_email = EXCLUDED.school_email,
		        school_phone = EXCLUDED.school_phone,
		        academic_year = EXCLUDED.academic_year,
		        document_processing_days = EXCLUDED.document_processing_days,
		        max_requests_per_user = EXCLUDED.max_requests_per_user,
		        auto_archive_completed_requests = EXCLUDED.auto_archive_completed_requests,
		        auto_archive_days = EXCLUDED.auto_archive_days,
		        status_update_notifications = EXCLUDED.status_update_notifications,
		        updated_by = EXCLUDED.updated_by,
		        updated_at = EXCLUDED.updated_at`,
		s.SchoolName, s.SchoolAddress, s.SchoolEmail, s.SchoolPhone, s.AcademicYear,
		s.DocumentProcessingDays, s.MaxRequestsPerUser,
		s.AutoArchiveCompletedRequests, s.AutoArchiveDays, s.StatusUpdateNotifications,
		s.UpdatedBy, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)

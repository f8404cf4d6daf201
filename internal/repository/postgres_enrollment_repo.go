package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/schoolportal/internal/model"
)

// PostgresEnrollmentRepo はPostgreSQLを使用した入学申請リポジトリ。
type PostgresEnrollmentRepo struct {
	db *sql.DB
}

// NewPostgresEnrollmentRepo はPostgresEnrollmentRepoを生成する。
func NewPostgresEnrollmentRepo(db *sql.DB) *PostgresEnrollmentRepo {
	return &PostgresEnrollmentRepo{db: db}
}

const enrollmentColumns = `id, user_id, enrollment_number, enrollment_type, learner_reference_number,
	surname, first_name, middle_name, extension, date_of_birth, sex, age, contact_number, email_address,
	last_school_attended, grade_to_enroll, track, section, details,
	status, review_notes, rejection_reason, reviewed_by, reviewed_at,
	archived, archived_at, archived_by, created_at, updated_at`

func scanEnrollment(row rowScanner) (*model.Enrollment, error) {
	e := &model.Enrollment{}
	var status string
	var details []byte
	err := row.Scan(
		&e.ID, &e.UserID, &e.EnrollmentNumber, &e.EnrollmentType, &e.LearnerReferenceNumber,
		&e.Surname, &e.FirstName, &e.MiddleName, &e.Extension, &e.DateOfBirth, &e.Sex, &e.Age, &e.ContactNumber, &e.EmailAddress,
		&e.LastSchoolAttended, &e.GradeToEnroll, &e.Track, &e.Section, &details,
		&status, &e.ReviewNotes, &e.RejectionReason, &e.ReviewedBy, &e.ReviewedAt,
		&e.Archived, &e.ArchivedAt, &e.ArchivedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Status = model.EnrollmentStatus(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to decode enrollment details: %w", err)
		}
	}
	return e, nil
}

// Create は申請を作成する。入学番号の重複時はErrDuplicateを返す。
func (r *PostgresEnrollmentRepo) Create(ctx context.Context, e *model.Enrollment) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("failed to encode enrollment details: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO enrollments (`+enrollmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		         $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		e.ID, e.UserID, e.EnrollmentNumber, e.EnrollmentType, e.LearnerReferenceNumber,
		e.Surname, e.FirstName, e.MiddleName, e.Extension, e.DateOfBirth, e.Sex, e.Age, e.ContactNumber, e.EmailAddress,
		e.LastSchoolAttended, e.GradeToEnroll, e.Track, e.Section, details,
		string(e.Status), e.ReviewNotes, e.RejectionReason, e.ReviewedBy, e.ReviewedAt,
		e.Archived, e.ArchivedAt, e.ArchivedBy, e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}
	return nil
}

// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
func (r *PostgresEnrollmentRepo) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment by ID: %w", err)
	}
	return e, nil
}

// FindLatestByUserID はユーザーの最新の申請を返す。見つからない場合はnilを返す。
func (r *PostgresEnrollmentRepo) FindLatestByUserID(ctx context.Context, userID string) (*model.Enrollment, error) {
	e, err := scanEnrollment(r.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find enrollment by user: %w", err)
	}
	return e, nil
}

// List はアーカイブ状態を指定して全申請を新しい順に返す。
func (r *PostgresEnrollmentRepo) List(ctx context.Context, archived bool) ([]*model.Enrollment, error) {
	return r.query(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE archived = $1 ORDER BY created_at DESC`,
		archived,
	)
}

// ListBySection はセクションと学年の完全一致で未アーカイブの申請を返す。
func (r *PostgresEnrollmentRepo) ListBySection(ctx context.Context, section, gradeLevel string) ([]*model.Enrollment, error) {
	return r.query(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		 WHERE archived = false AND lower(section) = lower($1) AND grade_to_enroll = $2
		 ORDER BY surname ASC, first_name ASC`,
		section, gradeLevel,
	)
}

// ListByGrade は学年の完全一致で未アーカイブの申請を返す。
func (r *PostgresEnrollmentRepo) ListByGrade(ctx context.Context, gradeLevel string) ([]*model.Enrollment, error) {
	return r.query(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments
		 WHERE archived = false AND grade_to_enroll = $1
		 ORDER BY surname ASC, first_name ASC`,
		gradeLevel,
	)
}

// Update はステータス・管理者項目・アーカイブ項目を更新する。
func (r *PostgresEnrollmentRepo) Update(ctx context.Context, e *model.Enrollment) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE enrollments SET
			status = $2, section = $3, review_notes = $4, rejection_reason = $5,
			reviewed_by = $6, reviewed_at = $7,
			archived = $8, archived_at = $9, archived_by = $10, updated_at = $11
		 WHERE id = $1`,
		e.ID, string(e.Status), e.Section, e.ReviewNotes, e.RejectionReason,
		e.ReviewedBy, e.ReviewedAt,
		e.Archived, e.ArchivedAt, e.ArchivedBy, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresEnrollmentRepo) query(ctx context.Context, query string, args ...any) ([]*model.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := []*model.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}
	return enrollments, nil
}

// compile-time interface check
var _ EnrollmentRepository = (*PostgresEnrollmentRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/schoolportal/internal/model"
)

// PostgresDocumentRequestRepo はPostgreSQLを使用した書類申請リポジトリ。
type PostgresDocumentRequestRepo struct {
	db *sql.DB
}

// NewPostgresDocumentRequestRepo はPostgresDocumentRequestRepoを生成する。
func NewPostgresDocumentRequestRepo(db *sql.DB) *PostgresDocumentRequestRepo {
	return &PostgresDocumentRequestRepo{db: db}
}

const documentColumns = `id, user_id, document_type, purpose,
	surname, given_name, middle_name, date_of_birth, sex, student_number, year_graduated, current_school, contact_number,
	preferred_pickup_date, preferred_pickup_time, additional_notes,
	status, priority, estimated_completion_at,
	review_notes, rejection_reason, reviewed_by, reviewed_at, completed_at,
	archived, archived_at, archived_by, created_at, updated_at`

func scanDocumentRequest(row rowScanner) (*model.DocumentRequest, error) {
	d := &model.DocumentRequest{}
	var status, priority string
	err := row.Scan(
		&d.ID, &d.UserID, &d.DocumentType, &d.Purpose,
		&d.Surname, &d.GivenName, &d.MiddleName, &d.DateOfBirth, &d.Sex, &d.StudentNumber, &d.YearGraduated, &d.CurrentSchool, &d.ContactNumber,
		&d.PreferredPickupDate, &d.PreferredPickupTime, &d.AdditionalNotes,
		&status, &priority, &d.EstimatedCompletionAt,
		&d.ReviewNotes, &d.RejectionReason, &d.ReviewedBy, &d.ReviewedAt, &d.CompletedAt,
		&d.Archived, &d.ArchivedAt, &d.ArchivedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	d.Priority = model.Priority(priority)
	return d, nil
}

// Create は申請を作成する。
func (r *PostgresDocumentRequestRepo) Create(ctx context.Context, d *model.DocumentRequest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO document_requests (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		         $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		d.ID, d.UserID, d.DocumentType, d.Purpose,
		d.Surname, d.GivenName, d.MiddleName, d.DateOfBirth, d.Sex, d.StudentNumber, d.YearGraduated, d.CurrentSchool, d.ContactNumber,
		d.PreferredPickupDate, d.PreferredPickupTime, d.AdditionalNotes,
		string(d.Status), string(d.Priority), d.EstimatedCompletionAt,
		d.ReviewNotes, d.RejectionReason, d.ReviewedBy, d.ReviewedAt, d.CompletedAt,
		d.Archived, d.ArchivedAt, d.ArchivedBy, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document request: %w", err)
	}
	return nil
}

// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
func (r *PostgresDocumentRequestRepo) FindByID(ctx context.Context, id string) (*model.DocumentRequest, error) {
	d, err := scanDocumentRequest(r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM document_requests WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document request by ID: %w", err)
	}
	return d, nil
}

// ListByUserID はユーザー自身の申請を新しい順に返す。
func (r *PostgresDocumentRequestRepo) ListByUserID(ctx context.Context, userID string) ([]*model.DocumentRequest, error) {
	return r.query(ctx,
		`SELECT `+documentColumns+` FROM document_requests WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
}

// List はアーカイブ状態を指定して全申請を新しい順に返す。
func (r *PostgresDocumentRequestRepo) List(ctx context.Context, archived bool) ([]*model.DocumentRequest, error) {
	order := "created_at DESC"
	if archived {
		order = "archived_at DESC NULLS LAST"
	}
	return r.query(ctx,
		`SELECT `+documentColumns+` FROM document_requests WHERE archived = $1 ORDER BY `+order,
		archived,
	)
}

// CountActiveByUserID は未完了かつ未アーカイブの申請数を返す。
func (r *PostgresDocumentRequestRepo) CountActiveByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_requests
		 WHERE user_id = $1 AND archived = false AND status NOT IN ('completed', 'rejected')`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active document requests: %w", err)
	}
	return count, nil
}

// Update はステータス・管理者項目・アーカイブ項目を更新する。
func (r *PostgresDocumentRequestRepo) Update(ctx context.Context, d *model.DocumentRequest) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE document_requests SET
			status = $2, priority = $3, review_notes = $4, rejection_reason = $5,
			reviewed_by = $6, reviewed_at = $7, completed_at = $8,
			archived = $9, archived_at = $10, archived_by = $11, updated_at = $12
		 WHERE id = $1`,
		d.ID, string(d.Status), string(d.Priority), d.ReviewNotes, d.RejectionReason,
		d.ReviewedBy, d.ReviewedAt, d.CompletedAt,
		d.Archived, d.ArchivedAt, d.ArchivedBy, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update document request: %w", err)
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

// ArchiveCompleted は完了済み申請を一括アーカイブし、件数を返す。
func (r *PostgresDocumentRequestRepo) ArchiveCompleted(ctx context.Context, archivedBy *string, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE document_requests
		 SET archived = true, archived_at = now(), archived_by = $1, updated_at = now()
		 WHERE status = 'completed' AND archived = false AND COALESCE(completed_at, updated_at) <= $2`,
		archivedBy, before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to archive completed document requests: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// EscalateOverdue は見込み完了日時を過ぎた処理中の申請の優先度をhighに引き上げ、
// 更新した申請を返す。既にhighの申請は対象外。
func (r *PostgresDocumentRequestRepo) EscalateOverdue(ctx context.Context, now time.Time) ([]*model.DocumentRequest, error) {
	return r.query(ctx,
		`UPDATE document_requests
		 SET priority = 'high', updated_at = $1
		 WHERE priority = 'normal' AND archived = false
		   AND status IN ('pending', 'processing', 'approved')
		   AND estimated_completion_at IS NOT NULL AND estimated_completion_at < $1
		 RETURNING `+documentColumns,
		now,
	)
}

func (r *PostgresDocumentRequestRepo) query(ctx context.Context, query string, args ...any) ([]*model.DocumentRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list document requests: %w", err)
	}
	defer rows.Close()

	requests := []*model.DocumentRequest{}
	for rows.Next() {
		d, err := scanDocumentRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document request: %w", err)
		}
		requests = append(requests, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document requests: %w", err)
	}
	return requests, nil
}

// compile-time interface check
var _ DocumentRequestRepository = (*PostgresDocumentRequestRepo)(nil)

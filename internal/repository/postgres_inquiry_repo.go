package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/schoolportal/internal/model"
)

// PostgresInquiryRepo はPostgreSQLを使用した問い合わせリポジトリ。
type PostgresInquiryRepo struct {
	db *sql.DB
}

// NewPostgresInquiryRepo はPostgresInquiryRepoを生成する。
func NewPostgresInquiryRepo(db *sql.DB) *PostgresInquiryRepo {
	return &PostgresInquiryRepo{db: db}
}

const inquiryColumns = `id, user_id, user_role, message, status, archived, archived_at, archived_by, created_at, updated_at`

func scanInquiry(row rowScanner) (*model.Inquiry, error) {
	inq := &model.Inquiry{}
	var role, status string
	err := row.Scan(&inq.ID, &inq.UserID, &role, &inq.Message, &status,
		&inq.Archived, &inq.ArchivedAt, &inq.ArchivedBy, &inq.CreatedAt, &inq.UpdatedAt)
	if err != nil {
		return nil, err
	}
	inq.UserRole = model.Role(role)
	inq.Status = model.InquiryStatus(status)
	inq.Replies = []model.InquiryReply{}
	return inq, nil
}

// Create は問い合わせを作成する。
func (r *PostgresInquiryRepo) Create(ctx context.Context, inq *model.Inquiry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO inquiries (`+inquiryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inq.ID, inq.UserID, string(inq.UserRole), inq.Message, string(inq.Status),
		inq.Archived, inq.ArchivedAt, inq.ArchivedBy, inq.CreatedAt, inq.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inquiry: %w", err)
	}
	return nil
}

// FindByID は返信付きで問い合わせを取得する。見つからない場合はnilを返す。
func (r *PostgresInquiryRepo) FindByID(ctx context.Context, id string) (*model.Inquiry, error) {
	inq, err := scanInquiry(r.db.QueryRowContext(ctx,
		`SELECT `+inquiryColumns+` FROM inquiries WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find inquiry by ID: %w", err)
	}

	if err := r.attachReplies(ctx, []*model.Inquiry{inq}); err != nil {
		return nil, err
	}
	return inq, nil
}

// ListByUserID はユーザー自身の問い合わせを返信付きで返す。
func (r *PostgresInquiryRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Inquiry, error) {
	return r.query(ctx,
		`SELECT `+inquiryColumns+` FROM inquiries WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
}

// List はアーカイブ状態を指定して全問い合わせを返信付きで返す。
func (r *PostgresInquiryRepo) List(ctx context.Context, archived bool) ([]*model.Inquiry, error) {
	return r.query(ctx,
		`SELECT `+inquiryColumns+` FROM inquiries WHERE archived = $1 ORDER BY created_at DESC`,
		archived,
	)
}

// Update はステータス・アーカイブ項目を更新する。
func (r *PostgresInquiryRepo) Update(ctx context.Context, inq *model.Inquiry) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE inquiries SET status = $2, archived = $3, archived_at = $4, archived_by = $5, updated_at = $6
		 WHERE id = $1`,
		inq.ID, string(inq.Status), inq.Archived, inq.ArchivedAt, inq.ArchivedBy, inq.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update inquiry: %w", err)
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

// AddReply は返信を追加し、問い合わせのupdated_atを進める。
func (r *PostgresInquiryRepo) AddReply(ctx context.Context, reply *model.InquiryReply) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE inquiries SET updated_at = $2 WHERE id = $1`,
		reply.InquiryID, reply.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to touch inquiry: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO inquiry_replies (id, inquiry_id, message, replied_by, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		reply.ID, reply.InquiryID, reply.Message, reply.RepliedBy, reply.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inquiry reply: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ArchiveClosed はclosedの問い合わせを一括アーカイブし、件数を返す。
func (r *PostgresInquiryRepo) ArchiveClosed(ctx context.Context, archivedBy *string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE inquiries SET archived = true, archived_at = now(), archived_by = $1, updated_at = now()
		 WHERE status = 'closed' AND archived = false`,
		archivedBy,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to archive closed inquiries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *PostgresInquiryRepo) query(ctx context.Context, query string, args ...any) ([]*model.Inquiry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	defer rows.Close()

	inquiries := []*model.Inquiry{}
	for rows.Next() {
		inq, err := scanInquiry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inquiry: %w", err)
		}
		inquiries = append(inquiries, inq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inquiries: %w", err)
	}

	if err := r.attachReplies(ctx, inquiries); err != nil {
		return nil, err
	}
	return inquiries, nil
}

// attachReplies は問い合わせ群の返信を1クエリでまとめて取得し、各問い合わせに設定する。
func (r *PostgresInquiryRepo) attachReplies(ctx context.Context, inquiries []*model.Inquiry) error {
	if len(inquiries) == 0 {
		return nil
	}

	ids := make([]string, len(inquiries))
	byID := make(map[string]*model.Inquiry, len(inquiries))
	for i, inq := range inquiries {
		ids[i] = inq.ID
		byID[inq.ID] = inq
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, inquiry_id, message, replied_by, created_at
		 FROM inquiry_replies WHERE inquiry_id = ANY($1::uuid[]) ORDER BY created_at ASC`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to list inquiry replies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reply model.InquiryReply
		if err := rows.Scan(&reply.ID, &reply.InquiryID, &reply.Message, &reply.RepliedBy, &reply.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan inquiry reply: %w", err)
		}
		if inq, ok := byID[reply.InquiryID]; ok {
			inq.Replies = append(inq.Replies, reply)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate inquiry replies: %w", err)
	}
	return nil
}

// compile-time interface check
var _ InquiryRepository = (*PostgresInquiryRepo)(nil)

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/schoolportal/internal/model"
)

// PostgresStubRepo はPostgreSQLを使用した受取票リポジトリ。
type PostgresStubRepo struct {
	db *sql.DB
}

// NewPostgresStubRepo はPostgresStubRepoを生成する。
func NewPostgresStubRepo(db *sql.DB) *PostgresStubRepo {
	return &PostgresStubRepo{db: db}
}

const stubColumns = `id, user_id, form, stub_code,
	surname, first_name, middle_name, sex, date_of_birth, learner_reference_number,
	grade_level, school_year, purpose, details,
	status, registrar_notes, submitted_at, verified_at, verified_by, ready_at, completed_at,
	created_at, updated_at`

func scanStub(row rowScanner) (*model.PickupStub, error) {
	s := &model.PickupStub{}
	var form, status string
	var details []byte
	err := row.Scan(
		&s.ID, &s.UserID, &form, &s.StubCode,
		&s.Surname, &s.FirstName, &s.MiddleName, &s.Sex, &s.DateOfBirth, &s.LearnerReferenceNumber,
		&s.GradeLevel, &s.SchoolYear, &s.Purpose, &details,
		&status, &s.RegistrarNotes, &s.SubmittedAt, &s.VerifiedAt, &s.VerifiedBy, &s.ReadyAt, &s.CompletedAt,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Form = model.StubForm(form)
	s.Status = model.StubStatus(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &s.Details); err != nil {
			return nil, fmt.Errorf("failed to decode stub details: %w", err)
		}
	}
	return s, nil
}

// Create は受取票を作成する。受取票コードの重複時はErrDuplicateを返す。
func (r *PostgresStubRepo) Create(ctx context.Context, s *model.PickupStub) error {
	details, err := json.Marshal(s.Details)
	if err != nil {
		return fmt.Errorf("failed to encode stub details: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO pickup_stubs (`+stubColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		         $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
		s.ID, s.UserID, string(s.Form), s.StubCode,
		s.Surname, s.FirstName, s.MiddleName, s.Sex, s.DateOfBirth, s.LearnerReferenceNumber,
		s.GradeLevel, s.SchoolYear, s.Purpose, details,
		string(s.Status), s.RegistrarNotes, s.SubmittedAt, s.VerifiedAt, s.VerifiedBy, s.ReadyAt, s.CompletedAt,
		s.CreatedAt, s.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert stub: %w", err)
	}
	return nil
}

// FindByID は指定IDの受取票を取得する。見つからない場合はnilを返す。
func (r *PostgresStubRepo) FindByID(ctx context.Context, id string) (*model.PickupStub, error) {
	return r.findOne(ctx, `SELECT `+stubColumns+` FROM pickup_stubs WHERE id = $1`, id)
}

// FindByCode は受取票コードで取得する。見つからない場合はnilを返す。
func (r *PostgresStubRepo) FindByCode(ctx context.Context, code string) (*model.PickupStub, error) {
	return r.findOne(ctx, `SELECT `+stubColumns+` FROM pickup_stubs WHERE stub_code = $1`, code)
}

func (r *PostgresStubRepo) findOne(ctx context.Context, query string, arg string) (*model.PickupStub, error) {
	s, err := scanStub(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stub: %w", err)
	}
	return s, nil
}

// ListByUserID はユーザー自身の受取票を新しい順に返す。
func (r *PostgresStubRepo) ListByUserID(ctx context.Context, form model.StubForm, userID string) ([]*model.PickupStub, error) {
	return r.query(ctx,
		`SELECT `+stubColumns+` FROM pickup_stubs WHERE form = $1 AND user_id = $2 ORDER BY created_at DESC`,
		string(form), userID,
	)
}

// List は条件に一致する受取票を新しい順に返す。
// 検索語はLIKEのワイルドカードをエスケープしてから部分一致に使う。
func (r *PostgresStubRepo) List(ctx context.Context, form model.StubForm, filter model.StubFilter) ([]*model.PickupStub, error) {
	conds := []string{"form = $1"}
	args := []any{string(form)}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(stub_code ILIKE $%[1]d OR first_name ILIKE $%[1]d OR surname ILIKE $%[1]d OR learner_reference_number ILIKE $%[1]d)", n))
	}

	return r.query(ctx,
		`SELECT `+stubColumns+` FROM pickup_stubs WHERE `+strings.Join(conds, " AND ")+` ORDER BY created_at DESC`,
		args...,
	)
}

// Update はステータスと窓口対応の項目を更新する。
func (r *PostgresStubRepo) Update(ctx context.Context, s *model.PickupStub) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE pickup_stubs SET
			status = $2, registrar_notes = $3,
			submitted_at = $4, verified_at = $5, verified_by = $6, ready_at = $7, completed_at = $8,
			updated_at = $9
		 WHERE id = $1`,
		s.ID, string(s.Status), s.RegistrarNotes,
		s.SubmittedAt, s.VerifiedAt, s.VerifiedBy, s.ReadyAt, s.CompletedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update stub: %w", err)
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

func (r *PostgresStubRepo) query(ctx context.Context, query string, args ...any) ([]*model.PickupStub, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stubs: %w", err)
	}
	defer rows.Close()

	stubs := []*model.PickupStub{}
	for rows.Next() {
		s, err := scanStub(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stub: %w", err)
		}
		stubs = append(stubs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stubs: %w", err)
	}
	return stubs, nil
}

// escapeLike はLIKEパターン中の \ % _ をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// compile-time interface check
var _ StubRepository = (*PostgresStubRepo)(nil)

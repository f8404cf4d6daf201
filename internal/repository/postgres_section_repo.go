package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/schoolportal/internal/model"
)

// PostgresSectionRepo はPostgreSQLを使用したセクションリポジトリ。
type PostgresSectionRepo struct {
	db *sql.DB
}

// NewPostgresSectionRepo はPostgresSectionRepoを生成する。
func NewPostgresSectionRepo(db *sql.DB) *PostgresSectionRepo {
	return &PostgresSectionRepo{db: db}
}

// Create はセクションを作成する。(name, grade_level)重複時はErrDuplicateを返す。
// 既存行は上書きしない。
func (r *PostgresSectionRepo) Create(ctx context.Context, s *model.Section) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sections (id, name, grade_level, adviser, capacity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.Name, s.GradeLevel, s.Adviser, s.Capacity, s.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert section: %w", err)
	}
	return nil
}

// List は全セクションを学年・名前順で返す。
func (r *PostgresSectionRepo) List(ctx context.Context) ([]*model.Section, error) {
	return r.query(ctx,
		`SELECT id, name, grade_level, adviser, capacity, created_at
		 FROM sections ORDER BY grade_level ASC, name ASC`,
	)
}

// ListByGrade は学年の完全一致でセクションを返す。
func (r *PostgresSectionRepo) ListByGrade(ctx context.Context, gradeLevel string) ([]*model.Section, error) {
	return r.query(ctx,
		`SELECT id, name, grade_level, adviser, capacity, created_at
		 FROM sections WHERE grade_level = $1 ORDER BY name ASC`,
		gradeLevel,
	)
}

func (r *PostgresSectionRepo) query(ctx context.Context, query string, args ...any) ([]*model.Section, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	sections := []*model.Section{}
	for rows.Next() {
		s := &model.Section{}
		if err := rows.Scan(&s.ID, &s.Name, &s.GradeLevel, &s.Adviser, &s.Capacity, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sections: %w", err)
	}
	return sections, nil
}

// compile-time interface check
var _ SectionRepository = (*PostgresSectionRepo)(nil)

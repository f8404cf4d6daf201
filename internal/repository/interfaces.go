// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/schoolportal/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// UpdateRole はユーザーのロールを更新する。対象がない場合はErrNotFoundを返す。
	UpdateRole(ctx context.Context, id string, role model.Role) error
}

// DocumentRequestRepository は書類申請の永続化インターフェース。
type DocumentRequestRepository interface {
	// Create は申請を作成する。
	Create(ctx context.Context, req *model.DocumentRequest) error

	// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.DocumentRequest, error)

	// ListByUserID はユーザー自身の申請を新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.DocumentRequest, error)

	// List はアーカイブ状態を指定して全申請を新しい順に返す。
	List(ctx context.Context, archived bool) ([]*model.DocumentRequest, error)

	// CountActiveByUserID は未完了（completed/rejected以外）かつ未アーカイブの申請数を返す。
	CountActiveByUserID(ctx context.Context, userID string) (int, error)

	// Update はステータス・管理者項目・アーカイブ項目を更新する。
	// 対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, req *model.DocumentRequest) error

	// ArchiveCompleted はcompleted_atがbefore以前の完了済み申請を一括アーカイブし、件数を返す。
	ArchiveCompleted(ctx context.Context, archivedBy *string, before time.Time) (int64, error)

	// EscalateOverdue は見込み完了日時を過ぎた未完了申請の優先度をhighにし、更新分を返す。
	EscalateOverdue(ctx context.Context, now time.Time) ([]*model.DocumentRequest, error)
}

// EnrollmentRepository は入学申請の永続化インターフェース。
type EnrollmentRepository interface {
	// Create は申請を作成する。入学番号の重複時はErrDuplicateを返す。
	Create(ctx context.Context, e *model.Enrollment) error

	// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Enrollment, error)

	// FindLatestByUserID はユーザーの最新の申請を返す。見つからない場合はnilを返す。
	FindLatestByUserID(ctx context.Context, userID string) (*model.Enrollment, error)

	// List はアーカイブ状態を指定して全申請を新しい順に返す。
	List(ctx context.Context, archived bool) ([]*model.Enrollment, error)

	// ListBySection はセクション名（大文字小文字を区別しない）と学年の完全一致で
	// 未アーカイブの申請を返す。gradeLevelは正規化済みであること。
	ListBySection(ctx context.Context, section, gradeLevel string) ([]*model.Enrollment, error)

	// ListByGrade は学年の完全一致で未アーカイブの申請を返す。
	ListByGrade(ctx context.Context, gradeLevel string) ([]*model.Enrollment, error)

	// Update はステータス・管理者項目・アーカイブ項目を更新する。
	Update(ctx context.Context, e *model.Enrollment) error
}

// SectionRepository はセクションの永続化インターフェース。
type SectionRepository interface {
	// Create はセクションを作成する。(name, grade_level)重複時はErrDuplicateを返す。
	Create(ctx context.Context, s *model.Section) error

	// List は全セクションを学年・名前順で返す。
	List(ctx context.Context) ([]*model.Section, error)

	// ListByGrade は学年の完全一致でセクションを返す。
	ListByGrade(ctx context.Context, gradeLevel string) ([]*model.Section, error)
}

// InquiryRepository は問い合わせの永続化インターフェース。
type InquiryRepository interface {
	// Create は問い合わせを作成する。
	Create(ctx context.Context, inq *model.Inquiry) error

	// FindByID は返信付きで問い合わせを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Inquiry, error)

	// ListByUserID はユーザー自身の問い合わせを返信付きで返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Inquiry, error)

	// List はアーカイブ状態を指定して全問い合わせを返信付きで返す。
	List(ctx context.Context, archived bool) ([]*model.Inquiry, error)

	// Update はステータス・アーカイブ項目を更新する。
	Update(ctx context.Context, inq *model.Inquiry) error

	// AddReply は返信を追加する。
	AddReply(ctx context.Context, reply *model.InquiryReply) error

	// ArchiveClosed はclosedの問い合わせを一括アーカイブし、件数を返す。
	ArchiveClosed(ctx context.Context, archivedBy *string) (int64, error)
}

// StubRepository はForm 137/138受取票の永続化インターフェース。
// 一覧系はすべて書類種別（form）で絞り込む。
type StubRepository interface {
	// Create は受取票を作成する。受取票コードの重複時はErrDuplicateを返す。
	Create(ctx context.Context, stub *model.PickupStub) error

	// FindByID は指定IDの受取票を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.PickupStub, error)

	// FindByCode は受取票コードで取得する。見つからない場合はnilを返す。
	FindByCode(ctx context.Context, code string) (*model.PickupStub, error)

	// ListByUserID はユーザー自身の受取票を新しい順に返す。
	ListByUserID(ctx context.Context, form model.StubForm, userID string) ([]*model.PickupStub, error)

	// List は条件に一致する受取票を新しい順に返す。
	List(ctx context.Context, form model.StubForm, filter model.StubFilter) ([]*model.PickupStub, error)

	// Update はステータスと窓口対応の項目を更新する。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, stub *model.PickupStub) error
}

// SettingsRepository は学校設定（シングルトン行）の永続化インターフェース。
type SettingsRepository interface {
	// Get は現在の設定を返す。
	Get(ctx context.Context) (*model.Settings, error)

	// Update は設定を上書きする。
	Update(ctx context.Context, s *model.Settings) error
}

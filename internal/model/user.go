// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Role はユーザーに付与される権限ラベル。
type Role string

const (
	RoleUser            Role = "user"
	RoleAdmin           Role = "admin"
	RoleSuperAdmin      Role = "super-admin"
	RoleAdminDocument   Role = "admin-document"
	RoleAdminEnrollment Role = "admin-enrollment"
)

// DefaultRole は新規登録時に固定で付与されるロール。
const DefaultRole = RoleUser

// AllRoles は定義済みロールの一覧を返す。
func AllRoles() []Role {
	return []Role{RoleUser, RoleAdmin, RoleSuperAdmin, RoleAdminDocument, RoleAdminEnrollment}
}

// IsValid はロールが定義済み集合に含まれるかを返す。
func (r Role) IsValid() bool {
	for _, known := range AllRoles() {
		if r == known {
			return true
		}
	}
	return false
}

// IsAdmin は一般ユーザー以外の管理系ロールかどうかを返す。
func (r Role) IsAdmin() bool {
	return r.IsValid() && r != RoleUser
}

// ParseRole は文字列からロールを解釈する。未知の値の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", false
	}
	return r, true
}

// User はポータル利用者を表す。
// PasswordHash はbcryptハッシュであり、APIレスポンスには含めない。
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName は表示用の氏名を返す。
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail はメールアドレスを比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

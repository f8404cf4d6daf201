// Package access はロールと機能の対応表、および名前付きゲートのロール集合を定義する。
// ここにある関数はすべて純粋関数で、HTTPやDBには依存しない。
package access

import "github.com/hitoshi/schoolportal/internal/model"

// Feature は画面・操作単位の機能キー。
type Feature string

const (
	FeatureEnrollmentManagement Feature = "enrollment-management"
	FeatureDocumentManagement   Feature = "document-management"
	FeatureUserManagement       Feature = "user-management"
	FeatureSystemSettings       Feature = "system-settings"
	FeatureInquiryManagement    Feature = "inquiry-management"
	FeatureArchiveAccess        Feature = "archive-access"
	FeatureQRVerification       Feature = "qr-verification"
)

// featureRoles は機能ごとに許可されるロールの固定表。
// 一般の admin はどの機能にも含まれない。
var featureRoles = map[Feature][]model.Role{
	FeatureEnrollmentManagement: {model.RoleAdminEnrollment, model.RoleSuperAdmin},
	FeatureDocumentManagement:   {model.RoleAdminDocument, model.RoleSuperAdmin},
	FeatureUserManagement:       {model.RoleSuperAdmin},
	FeatureSystemSettings:       {model.RoleSuperAdmin},
	FeatureInquiryManagement:    {model.RoleAdminDocument, model.RoleSuperAdmin},
	FeatureArchiveAccess:        {model.RoleAdminEnrollment, model.RoleAdminDocument, model.RoleSuperAdmin},
	FeatureQRVerification:       {model.RoleAdminEnrollment, model.RoleAdminDocument, model.RoleSuperAdmin},
}

// 名前付きゲートのロール集合
var (
	SuperAdmins      = []model.Role{model.RoleSuperAdmin}
	EnrollmentAdmins = []model.Role{model.RoleAdminEnrollment, model.RoleSuperAdmin}
	DocumentAdmins   = []model.Role{model.RoleAdminDocument, model.RoleSuperAdmin}
	AnyAdmin         = []model.Role{model.RoleAdmin, model.RoleAdminEnrollment, model.RoleAdminDocument, model.RoleSuperAdmin}
	Users            = []model.Role{model.RoleUser}
)

// Allowed は role が allowed に含まれるかを返す。
func Allowed(role model.Role, allowed []model.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// CanAccessFeature は role が feature を利用できるかを返す。
// 未知の機能キーは常に拒否する。
func CanAccessFeature(role model.Role, feature Feature) bool {
	roles, ok := featureRoles[feature]
	if !ok {
		return false
	}
	return Allowed(role, roles)
}

// RolesFor は feature を利用できるロール一覧のコピーを返す。未知の機能はnil。
func RolesFor(feature Feature) []model.Role {
	roles, ok := featureRoles[feature]
	if !ok {
		return nil
	}
	out := make([]model.Role, len(roles))
	copy(out, roles)
	return out
}

// Features は role が利用できる機能キーを固定順で返す。
func Features(role model.Role) []Feature {
	var out []Feature
	for _, f := range AllFeatures() {
		if CanAccessFeature(role, f) {
			out = append(out, f)
		}
	}
	return out
}

// AllFeatures は定義済み機能キーを表示順で返す。
func AllFeatures() []Feature {
	return []Feature{
		FeatureEnrollmentManagement,
		FeatureDocumentManagement,
		FeatureUserManagement,
		FeatureSystemSettings,
		FeatureInquiryManagement,
		FeatureArchiveAccess,
		FeatureQRVerification,
	}
}

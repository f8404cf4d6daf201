package access

import (
	"testing"

	"github.com/hitoshi/schoolportal/internal/model"
)

func TestCanAccessFeature_Table(t *testing.T) {
	tests := []struct {
		feature Feature
		allowed []model.Role
	}{
		{FeatureEnrollmentManagement, []model.Role{model.RoleAdminEnrollment, model.RoleSuperAdmin}},
		{FeatureDocumentManagement, []model.Role{model.RoleAdminDocument, model.RoleSuperAdmin}},
		{FeatureUserManagement, []model.Role{model.RoleSuperAdmin}},
		{FeatureSystemSettings, []model.Role{model.RoleSuperAdmin}},
		{FeatureInquiryManagement, []model.Role{model.RoleAdminDocument, model.RoleSuperAdmin}},
		{FeatureArchiveAccess, []model.Role{model.RoleAdminEnrollment, model.RoleAdminDocument, model.RoleSuperAdmin}},
		{FeatureQRVerification, []model.Role{model.RoleAdminEnrollment, model.RoleAdminDocument, model.RoleSuperAdmin}},
	}

	for _, tt := range tests {
		t.Run(string(tt.feature), func(t *testing.T) {
			for _, role := range model.AllRoles() {
				want := Allowed(role, tt.allowed)
				if got := CanAccessFeature(role, tt.feature); got != want {
					t.Errorf("CanAccessFeature(%s, %s) = %v, want %v", role, tt.feature, got, want)
				}
			}
		})
	}
}

func TestCanAccessFeature_UnknownFeatureDeniedForEveryRole(t *testing.T) {
	for _, role := range append(model.AllRoles(), model.Role("")) {
		if CanAccessFeature(role, "unknown-feature") {
			t.Errorf("CanAccessFeature(%q, unknown-feature) = true, want false", role)
		}
	}
}

func TestPlainAdmin_OnlyInAnyAdminGate(t *testing.T) {
	if !Allowed(model.RoleAdmin, AnyAdmin) {
		t.Error("admin should pass AnyAdmin")
	}
	for name, set := range map[string][]model.Role{
		"SuperAdmins":      SuperAdmins,
		"EnrollmentAdmins": EnrollmentAdmins,
		"DocumentAdmins":   DocumentAdmins,
	} {
		if Allowed(model.RoleAdmin, set) {
			t.Errorf("admin should not pass %s", name)
		}
	}
	if got := Features(model.RoleAdmin); len(got) != 0 {
		t.Errorf("Features(admin) = %v, want none", got)
	}
}

func TestFeatures_SuperAdminHasAll(t *testing.T) {
	if got := Features(model.RoleSuperAdmin); len(got) != len(AllFeatures()) {
		t.Errorf("Features(super-admin) = %v, want all %d", got, len(AllFeatures()))
	}
}

func TestRolesFor_ReturnsCopy(t *testing.T) {
	roles := RolesFor(FeatureUserManagement)
	roles[0] = model.RoleUser

	if !CanAccessFeature(model.RoleSuperAdmin, FeatureUserManagement) {
		t.Error("mutating RolesFor result must not change the table")
	}
	if RolesFor("nope") != nil {
		t.Error("RolesFor(unknown) should be nil")
	}
}

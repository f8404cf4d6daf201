package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/settings"
)

// mockSettingsService はSettingsServiceInterfaceのモック実装。
type mockSettingsService struct {
	getFn    func(ctx context.Context) (*model.Settings, error)
	publicFn func(ctx context.Context) (*settings.Public, error)
	updateFn func(ctx context.Context, in settings.UpdateInput, actor *model.User) (*model.Settings, error)
}

func (m *mockSettingsService) Get(ctx context.Context) (*model.Settings, error) {
	if m.getFn != nil {
		return m.getFn(ctx)
	}
	return model.DefaultSettings(), nil
}

func (m *mockSettingsService) Public(ctx context.Context) (*settings.Public, error) {
	if m.publicFn != nil {
		return m.publicFn(ctx)
	}
	s := model.DefaultSettings()
	return &settings.Public{SchoolName: s.SchoolName, AcademicYear: s.AcademicYear}, nil
}

func (m *mockSettingsService) Update(ctx context.Context, in settings.UpdateInput, actor *model.User) (*model.Settings, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, in, actor)
	}
	return model.DefaultSettings(), nil
}

func TestSettingsHandler_GetPublic_OnlyPublicFields(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{})

	w := httptest.NewRecorder()
	h.GetPublic(w, httptest.NewRequest(http.MethodGet, "/api/settings/public", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("autoArchiveDays")) {
		t.Errorf("public settings should not expose admin fields: %s", w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"schoolName"`)) {
		t.Errorf("schoolName missing: %s", w.Body.String())
	}
}

func TestSettingsHandler_Update_PartialInput(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{
		updateFn: func(_ context.Context, in settings.UpdateInput, actor *model.User) (*model.Settings, error) {
			if in.MaxRequestsPerUser == nil || *in.MaxRequestsPerUser != 3 {
				t.Errorf("maxRequestsPerUser = %v", in.MaxRequestsPerUser)
			}
			if in.SchoolName != nil {
				t.Errorf("schoolName should be nil when omitted")
			}
			s := model.DefaultSettings()
			s.MaxRequestsPerUser = 3
			id := actor.ID
			s.UpdatedBy = &id
			return s, nil
		},
	})

	req := httptest.NewRequest(http.MethodPut, "/api/settings", jsonBody(t, map[string]int{"maxRequestsPerUser": 3}))
	req = withUser(req, testSuperAdmin)
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body=%s)", w.Code, w.Body.String())
	}
	var resp settingsResponse
	decodeBody(t, w, &resp)
	if resp.MaxRequestsPerUser != 3 || resp.UpdatedBy == nil || *resp.UpdatedBy != testSuperAdmin.ID {
		t.Errorf("response = %+v", resp)
	}
}

func TestSettingsHandler_Update_ValidationError(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{
		updateFn: func(context.Context, settings.UpdateInput, *model.User) (*model.Settings, error) {
			return nil, model.NewValidationError("documentProcessingDays: must be no greater than 30.")
		},
	})

	req := withUser(httptest.NewRequest(http.MethodPut, "/api/settings",
		jsonBody(t, map[string]int{"documentProcessingDays": 99})), testSuperAdmin)
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

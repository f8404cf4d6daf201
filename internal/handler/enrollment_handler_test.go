package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/schoolportal/internal/enrollment"
	"github.com/hitoshi/schoolportal/internal/model"
)

// --- モック定義 ---

// mockEnrollmentService はEnrollmentServiceInterfaceのモック実装。
type mockEnrollmentService struct {
	submitFn        func(ctx context.Context, userID string, in enrollment.SubmitInput) (*model.Enrollment, error)
	myStatusFn      func(ctx context.Context, userID string) (*model.Enrollment, error)
	listFn          func(ctx context.Context, archived bool) ([]*model.Enrollment, error)
	listBySectionFn func(ctx context.Context, section, gradeLevel string) ([]*model.Enrollment, error)
	listByGradeFn   func(ctx context.Context, gradeLevel string) ([]*model.Enrollment, error)
	transitionFn    func(ctx context.Context, id string, upd enrollment.StatusUpdate, actor *model.User) (*model.Enrollment, error)
	archiveFn       func(ctx context.Context, id string, actor *model.User) (*model.Enrollment, error)
	restoreFn       func(ctx context.Context, id string, actor *model.User) (*model.Enrollment, error)
}

func (m *mockEnrollmentService) Submit(ctx context.Context, userID string, in enrollment.SubmitInput) (*model.Enrollment, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, userID, in)
	}
	return sampleEnrollment(), nil
}

func (m *mockEnrollmentService) MyStatus(ctx context.Context, userID string) (*model.Enrollment, error) {
	if m.myStatusFn != nil {
		return m.myStatusFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockEnrollmentService) List(ctx context.Context, archived bool) ([]*model.Enrollment, error) {
	if m.listFn != nil {
		return m.listFn(ctx, archived)
	}
	return nil, nil
}

func (m *mockEnrollmentService) ListBySection(ctx context.Context, section, gradeLevel string) ([]*model.Enrollment, error) {
	if m.listBySectionFn != nil {
		return m.listBySectionFn(ctx, section, gradeLevel)
	}
	return nil, nil
}

func (m *mockEnrollmentService) ListByGrade(ctx context.Context, gradeLevel string) ([]*model.Enrollment, error) {
	if m.listByGradeFn != nil {
		return m.listByGradeFn(ctx, gradeLevel)
	}
	return nil, nil
}

func (m *mockEnrollmentService) TransitionStatus(ctx context.Context, id string, upd enrollment.StatusUpdate, actor *model.User) (*model.Enrollment, error) {
	if m.transitionFn != nil {
		return m.transitionFn(ctx, id, upd, actor)
	}
	return sampleEnrollment(), nil
}

func (m *mockEnrollmentService) Archive(ctx context.Context, id string, actor *model.User) (*model.Enrollment, error) {
	if m.archiveFn != nil {
		return m.archiveFn(ctx, id, actor)
	}
	return sampleEnrollment(), nil
}

func (m *mockEnrollmentService) Restore(ctx context.Context, id string, actor *model.User) (*model.Enrollment, error) {
	if m.restoreFn != nil {
		return m.restoreFn(ctx, id, actor)
	}
	return sampleEnrollment(), nil
}

const sampleEnrollmentID = "55555555-5555-5555-5555-555555555555"

func sampleEnrollment() *model.Enrollment {
	return &model.Enrollment{
		ID:               sampleEnrollmentID,
		UserID:           testUser.ID,
		EnrollmentNumber: "ENR-2024-0042",
		EnrollmentType:   model.EnrollmentTypeNew,
		Surname:          "Dela Cruz",
		FirstName:        "Jane",
		GradeToEnroll:    "Grade 7",
		Details: model.EnrollmentDetails{
			GuardianName:     "Maria Dela Cruz",
			BirthCertificate: true,
		},
		Status:    model.EnrollmentPending,
		CreatedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

// --- POST /api/enrollments ---

func TestEnrollmentHandler_Submit_FlatDetails(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{
		submitFn: func(_ context.Context, userID string, in enrollment.SubmitInput) (*model.Enrollment, error) {
			if userID != testUser.ID {
				t.Errorf("userID = %q", userID)
			}
			if in.GuardianName != "Maria Dela Cruz" || !in.BirthCertificate {
				t.Errorf("details not decoded from top level: %+v", in.EnrollmentDetails)
			}
			return sampleEnrollment(), nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/enrollments", jsonBody(t, map[string]any{
		"enrollmentType":   "new",
		"surname":          "Dela Cruz",
		"firstName":        "Jane",
		"gradeToEnroll":    "7",
		"guardianName":     "Maria Dela Cruz",
		"birthCertificate": true,
	}))
	req = withUser(req, testUser)
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, http.StatusCreated, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"guardianName":"Maria Dela Cruz"`)) {
		t.Errorf("details should be flattened into the response: %s", w.Body.String())
	}
	var resp enrollmentResponse
	decodeBody(t, w, &resp)
	if resp.EnrollmentNumber != "ENR-2024-0042" || resp.Status != "pending" {
		t.Errorf("response = %+v", resp)
	}
}

// --- GET /api/enrollments/my-status ---

func TestEnrollmentHandler_MyStatus_NoEnrollment(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/enrollments/my-status", nil), testUser)
	w := httptest.NewRecorder()

	h.MyStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp myStatusResponse
	decodeBody(t, w, &resp)
	if resp.HasEnrollment || resp.Enrollment != nil {
		t.Errorf("response = %+v, want hasEnrollment=false", resp)
	}
	if resp.Message == "" {
		t.Error("expected a message when there is no enrollment")
	}
}

func TestEnrollmentHandler_MyStatus_WithEnrollment(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{
		myStatusFn: func(_ context.Context, userID string) (*model.Enrollment, error) {
			return sampleEnrollment(), nil
		},
	})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/enrollments/my-status", nil), testUser)
	w := httptest.NewRecorder()

	h.MyStatus(w, req)

	var resp myStatusResponse
	decodeBody(t, w, &resp)
	if !resp.HasEnrollment || resp.Enrollment == nil || resp.Enrollment.ID != sampleEnrollmentID {
		t.Errorf("response = %+v", resp)
	}
}

// --- GET /api/enrollments?section=&gradeLevel= ---

func TestEnrollmentHandler_ListBySection_ReadsQuery(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{
		listBySectionFn: func(_ context.Context, section, gradeLevel string) ([]*model.Enrollment, error) {
			if section != "A" || gradeLevel != "Grade 7" {
				t.Errorf("ListBySection(%q, %q)", section, gradeLevel)
			}
			e := sampleEnrollment()
			e.Status = model.EnrollmentEnrolled
			e.Section = "A"
			return []*model.Enrollment{e}, nil
		},
	})

	w := httptest.NewRecorder()
	h.ListBySection(w, httptest.NewRequest(http.MethodGet, "/api/enrollments?section=A&gradeLevel=Grade+7", nil))

	var resp []enrollmentResponse
	decodeBody(t, w, &resp)
	if len(resp) != 1 || resp[0].Section != "A" || resp[0].Status != "enrolled" {
		t.Errorf("response = %+v", resp)
	}
}

func TestEnrollmentHandler_ListBySection_MissingParams(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{
		listBySectionFn: func(context.Context, string, string) ([]*model.Enrollment, error) {
			return nil, model.NewValidationError("section is required")
		},
	})

	w := httptest.NewRecorder()
	h.ListBySection(w, httptest.NewRequest(http.MethodGet, "/api/enrollments", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestEnrollmentHandler_ListByGrade_UsesPathParam(t *testing.T) {
	var got string
	h := NewEnrollmentHandler(&mockEnrollmentService{
		listByGradeFn: func(_ context.Context, gradeLevel string) ([]*model.Enrollment, error) {
			got = gradeLevel
			return nil, nil
		},
	})

	req := withChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "gradeLevel", "Grade 8")
	w := httptest.NewRecorder()

	h.ListByGrade(w, req)

	if got != "Grade 8" {
		t.Errorf("gradeLevel = %q, want %q", got, "Grade 8")
	}
}

// --- PUT /api/enrollments/{id}/status ---

func TestEnrollmentHandler_UpdateStatus_PassesSection(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{
		transitionFn: func(_ context.Context, id string, upd enrollment.StatusUpdate, actor *model.User) (*model.Enrollment, error) {
			if id != sampleEnrollmentID {
				t.Errorf("id = %q", id)
			}
			if upd.Status != "enrolled" || upd.Section == nil || *upd.Section != "A" {
				t.Errorf("upd = %+v", upd)
			}
			if actor.Role != model.RoleAdminEnrollment {
				t.Errorf("actor role = %q", actor.Role)
			}
			e := sampleEnrollment()
			e.Status = model.EnrollmentEnrolled
			e.Section = *upd.Section
			return e, nil
		},
	})

	req := httptest.NewRequest(http.MethodPut, "/", jsonBody(t, map[string]string{"status": "enrolled", "section": "A"}))
	req = withUser(withChiURLParam(req, "id", sampleEnrollmentID), testEnrollmentAdmin)
	w := httptest.NewRecorder()

	h.UpdateStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body=%s)", w.Code, w.Body.String())
	}
	var resp enrollmentResponse
	decodeBody(t, w, &resp)
	if resp.Section != "A" || resp.Status != "enrolled" {
		t.Errorf("response = %+v", resp)
	}
}

func TestEnrollmentHandler_UpdateStatus_NotFound(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{
		transitionFn: func(_ context.Context, id string, _ enrollment.StatusUpdate, _ *model.User) (*model.Enrollment, error) {
			return nil, model.NewEnrollmentNotFoundError(id)
		},
	})

	req := httptest.NewRequest(http.MethodPut, "/", jsonBody(t, map[string]string{"status": "approved"}))
	req = withUser(withChiURLParam(req, "id", "not-a-uuid"), testEnrollmentAdmin)
	w := httptest.NewRecorder()

	h.UpdateStatus(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestEnrollmentHandler_Archive_NoUser(t *testing.T) {
	h := NewEnrollmentHandler(&mockEnrollmentService{
		archiveFn: func(context.Context, string, *model.User) (*model.Enrollment, error) {
			t.Error("Archive should not be called without a user")
			return nil, nil
		},
	})

	w := httptest.NewRecorder()
	h.Archive(w, withChiURLParam(httptest.NewRequest(http.MethodPatch, "/", nil), "id", sampleEnrollmentID))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

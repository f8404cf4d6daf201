package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/schoolportal/internal/middleware"
	"github.com/hitoshi/schoolportal/internal/model"
)

// --- テストヘルパー ---

// withUser はテスト用にリクエストコンテキストにユーザーを注入するヘルパー。
func withUser(r *http.Request, user *model.User) *http.Request {
	return r.WithContext(middleware.ContextWithUser(r.Context(), user))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// jsonBody は値をJSONにしたリクエストボディを返す。
func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

// parseAPIErrorResponse はレスポンスボディからエラーレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeBody はレスポンスボディをvにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v (body=%s)", err, w.Body.String())
	}
}

var (
	testUser = &model.User{
		ID: "11111111-1111-1111-1111-111111111111", FirstName: "Jane", LastName: "Dela Cruz",
		Email: "jane@example.com", Role: model.RoleUser,
	}
	testEnrollmentAdmin = &model.User{
		ID: "22222222-2222-2222-2222-222222222222", FirstName: "Ana", LastName: "Reyes",
		Email: "registrar@example.com", Role: model.RoleAdminEnrollment,
	}
	testSuperAdmin = &model.User{
		ID: "33333333-3333-3333-3333-333333333333", FirstName: "Mark", LastName: "Santos",
		Email: "principal@example.com", Role: model.RoleSuperAdmin,
	}
)

// --- mapAPIErrorToHTTPStatus ---

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"validation", model.NewValidationError("x"), http.StatusBadRequest},
		{"duplicate email", model.NewDuplicateEmailError(), http.StatusBadRequest},
		{"invalid role", model.NewInvalidRoleError(), http.StatusBadRequest},
		{"duplicate section", model.NewDuplicateSectionError("A", "Grade 7"), http.StatusBadRequest},
		{"invalid status", model.NewInvalidStatusError("done"), http.StatusBadRequest},
		{"request limit", model.NewRequestLimitReachedError(5), http.StatusBadRequest},
		{"invalid credentials", model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{"missing token", model.NewMissingTokenError(), http.StatusUnauthorized},
		{"invalid token", model.NewInvalidTokenError(), http.StatusUnauthorized},
		{"access denied", model.NewAccessDeniedError(model.RoleUser, []model.Role{model.RoleSuperAdmin}), http.StatusForbidden},
		{"request not found", model.NewRequestNotFoundError("x"), http.StatusNotFound},
		{"enrollment not found", model.NewEnrollmentNotFoundError("x"), http.StatusNotFound},
		{"inquiry not found", model.NewInquiryNotFoundError("x"), http.StatusNotFound},
		{"user not found", model.NewUserNotFoundError(), http.StatusNotFound},
		{"stub not found", model.NewStubNotFoundError("F137-000000-XXXXXX"), http.StatusNotFound},
		{"invalid transition", model.NewInvalidTransitionError("document", "completed", "pending"), http.StatusConflict},
		{"too many attempts", model.NewTooManyAttemptsError(), http.StatusTooManyRequests},
		{"internal", model.NewInternalError(), http.StatusInternalServerError},
		{"unknown", &model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

// --- handleServiceError ---

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	err := fmt.Errorf("context: %w", model.NewEnrollmentNotFoundError("abc"))

	handleServiceError(w, err)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	body := parseAPIErrorResponse(t, w)
	if body.Code != model.ErrCodeEnrollmentNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeEnrollmentNotFound)
	}
	if body.Category != model.CategoryNotFound {
		t.Errorf("category = %q, want %q", body.Category, model.CategoryNotFound)
	}
}

func TestHandleServiceError_PlainErrorHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()

	handleServiceError(w, errors.New("pq: connection refused to 10.0.0.5"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("10.0.0.5")) {
		t.Errorf("response leaked internal error: %s", w.Body.String())
	}
	body := parseAPIErrorResponse(t, w)
	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
}

func TestHandleServiceError_AccessDeniedCarriesRoles(t *testing.T) {
	w := httptest.NewRecorder()

	handleServiceError(w, model.NewAccessDeniedError(model.RoleAdmin, []model.Role{model.RoleSuperAdmin}))

	body := parseAPIErrorResponse(t, w)
	if body.UserRole != string(model.RoleAdmin) {
		t.Errorf("userRole = %q, want %q", body.UserRole, model.RoleAdmin)
	}
	if len(body.RequiredRoles) != 1 || body.RequiredRoles[0] != string(model.RoleSuperAdmin) {
		t.Errorf("requiredRoles = %v, want [super-admin]", body.RequiredRoles)
	}
}

func TestDecodeJSON_InvalidBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))

	var v map[string]any
	if decodeJSON(w, r, &v) {
		t.Fatal("decodeJSON() = true, want false")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := parseAPIErrorResponse(t, w); body.Code != model.ErrCodeValidationFailed {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeValidationFailed)
	}
}

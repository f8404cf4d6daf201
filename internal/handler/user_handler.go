package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/schoolportal/internal/model"
)

// UserServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// ListUsers は全ユーザーを返す。
	ListUsers(ctx context.Context) ([]*model.User, error)
	// ChangeRole はユーザーのロールを変更する。操作者自身のロールは変更できない。
	ChangeRole(ctx context.Context, actorID, userID, role string) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// changeRoleRequest はロール変更リクエストのボディ。
type changeRoleRequest struct {
	Role string `json:"role"`
}

// ListUsers は全ユーザーを返す。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponses(users))
}

// ChangeRole はユーザーのロールを変更する。
// PATCH /api/users/{id}/role
func (h *UserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.ChangeRole(r.Context(), actor.ID, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/schoolportal/internal/access"
	"github.com/hitoshi/schoolportal/internal/auth"
	"github.com/hitoshi/schoolportal/internal/middleware"
	"github.com/hitoshi/schoolportal/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は一般ユーザーを登録する。
	Register(ctx context.Context, in auth.RegisterInput) (*model.User, error)
	// Login は資格情報を検証しトークンを発行する。
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
}

// AuthHandler は登録・ログイン・現在ユーザー取得のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// meResponse は現在ユーザーと利用可能な機能の一覧。
type meResponse struct {
	User     userResponse     `json:"user"`
	Features []access.Feature `json:"features"`
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !decodeJSON(w, r, &in) {
		return
	}

	if _, err := h.service.Register(r.Context(), in); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

// Login はログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		User:  toUserResponse(result.User),
	})
}

// Me は現在のユーザー情報を返す。
// ロールはトークンではなくDB上の値を使う。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewMissingTokenError())
		return
	}

	features := access.Features(user.Role)
	if features == nil {
		features = []access.Feature{}
	}
	writeJSON(w, http.StatusOK, meResponse{
		User:     toUserResponse(user),
		Features: features,
	})
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func toUserResponses(users []*model.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

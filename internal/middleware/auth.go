// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/schoolportal/internal/access"
	"github.com/hitoshi/schoolportal/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// TokenVerifier はBearerトークンを検証し、現在のユーザーを返すインターフェース。
// auth.Serviceが実装する。
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// トークンがない場合・不正な場合は401を返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := verifier.Verify(r.Context(), bearerToken(r))
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				slog.Error("トークンの検証に失敗しました",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			noteUser(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// bearerToken は "Authorization: Bearer <token>" からトークンを取り出す。
// スキーム名は大文字小文字を区別しない。
func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireRoles は認証済みユーザーのロールがrolesに含まれる場合のみ通過させるゲートを返す。
// 拒否時は403と、実ロール・要求ロールを返す。
// NewAuthMiddlewareの後に配置すること。
func RequireRoles(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingTokenError())
				return
			}
			if !access.Allowed(user.Role, roles) {
				slog.Warn("権限不足のためアクセスを拒否しました",
					slog.String("user_id", user.ID),
					slog.String("role", string(user.Role)),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewAccessDeniedError(user.Role, roles))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin はsuper-adminのみを通過させる。
func RequireSuperAdmin() func(next http.Handler) http.Handler {
	return RequireRoles(access.SuperAdmins...)
}

// RequireEnrollmentAdmin は入学申請を変更できるロールのみを通過させる。
func RequireEnrollmentAdmin() func(next http.Handler) http.Handler {
	return RequireRoles(access.EnrollmentAdmins...)
}

// RequireDocumentAdmin は書類申請を変更できるロールのみを通過させる。
func RequireDocumentAdmin() func(next http.Handler) http.Handler {
	return RequireRoles(access.DocumentAdmins...)
}

// RequireAnyAdmin は管理系ロール（一般のadminを含む）を通過させる。
func RequireAnyAdmin() func(next http.Handler) http.Handler {
	return RequireRoles(access.AnyAdmin...)
}

// RequireUser は一般利用者のみを通過させる。
func RequireUser() func(next http.Handler) http.Handler {
	return RequireRoles(access.Users...)
}

// RequireFeature は機能表に従ってfeatureを利用できるロールのみを通過させる。
func RequireFeature(feature access.Feature) func(next http.Handler) http.Handler {
	return RequireRoles(access.RolesFor(feature)...)
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

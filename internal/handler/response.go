package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/schoolportal/internal/middleware"
	"github.com/hitoshi/schoolportal/internal/model"
)

// messageResponse はメッセージのみのレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをvに読み込む。
// 失敗した場合は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestBodyError())
		return false
	}
	return true
}

// currentUser は認証ミドルウェアが設定したユーザーを返す。
// 存在しない場合は401を書き込みfalseを返す。
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewMissingTokenError())
		return nil, false
	}
	return user, true
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed,
		model.ErrCodeDuplicateEmail,
		model.ErrCodeInvalidRole,
		model.ErrCodeDuplicateSection,
		model.ErrCodeInvalidStatus,
		model.ErrCodeRequestLimitReached:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials, model.ErrCodeMissingToken, model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeRequestNotFound,
		model.ErrCodeEnrollmentNotFound,
		model.ErrCodeInquiryNotFound,
		model.ErrCodeUserNotFound,
		model.ErrCodeStubNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidTransition:
		return http.StatusConflict
	case model.ErrCodeTooManyAttempts:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// 認可エラーの場合のみ UserRole と RequiredRoles を持つ。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, auth, forbidden, not_found, lifecycle, system
	Action   string // ユーザー向け対処方法

	UserRole      string
	RequiredRoles []string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryForbidden  = "forbidden"
	CategoryNotFound   = "not_found"
	CategoryLifecycle  = "lifecycle"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	ErrCodeInvalidRole         = "INVALID_ROLE"
	ErrCodeDuplicateSection    = "DUPLICATE_SECTION"
	ErrCodeInvalidStatus       = "INVALID_STATUS"
	ErrCodeRequestLimitReached = "REQUEST_LIMIT_REACHED"

	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeMissingToken       = "MISSING_TOKEN"
	ErrCodeInvalidToken       = "INVALID_TOKEN"

	ErrCodeAccessDenied = "ACCESS_DENIED"

	ErrCodeRequestNotFound    = "REQUEST_NOT_FOUND"
	ErrCodeEnrollmentNotFound = "ENROLLMENT_NOT_FOUND"
	ErrCodeInquiryNotFound    = "INQUIRY_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeStubNotFound       = "STUB_NOT_FOUND"

	ErrCodeInvalidTransition = "INVALID_TRANSITION"

	ErrCodeTooManyAttempts = "TOO_MANY_ATTEMPTS"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewValidationError は入力値不正エラーを生成する。
func NewValidationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  detail,
		Category: CategoryValidation,
		Action:   "Check the highlighted fields and submit again.",
	}
}

// NewInvalidRequestBodyError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestBodyError() *APIError {
	return NewValidationError("Request body could not be parsed.")
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "User already exists",
		Category: CategoryValidation,
		Action:   "Log in with the existing account or use another email address.",
	}
}

// NewInvalidRoleError は未知のロール、または登録時に既定以外のロールが指定された場合のエラーを生成する。
func NewInvalidRoleError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  "Invalid role specified",
		Category: CategoryValidation,
		Action:   "Use a defined role. Self-registration always creates a regular user.",
	}
}

// NewDuplicateSectionError はセクション重複エラーを生成する。
func NewDuplicateSectionError(name, gradeLevel string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSection,
		Message:  fmt.Sprintf("Section %s already exists for %s", name, gradeLevel),
		Category: CategoryValidation,
		Action:   "Choose a different section name for this grade level.",
	}
}

// NewInvalidStatusError は未知のステータス値エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("Invalid status: %s", status),
		Category: CategoryValidation,
		Action:   "Use one of the documented status values.",
	}
}

// NewRequestLimitReachedError は申請数上限エラーを生成する。
func NewRequestLimitReachedError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeRequestLimitReached,
		Message:  fmt.Sprintf("You already have %d active document requests", limit),
		Category: CategoryValidation,
		Action:   "Wait for an existing request to be completed before filing a new one.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレス未登録とパスワード不一致で同一の内容を返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: CategoryAuth,
		Action:   "Check your email and password.",
	}
}

// NewMissingTokenError はトークン未指定エラーを生成する。
func NewMissingTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingToken,
		Message:  "Access denied. No token provided.",
		Category: CategoryAuth,
		Action:   "Log in and send the token as a Bearer Authorization header.",
	}
}

// NewInvalidTokenError は不正または期限切れトークンのエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid token",
		Category: CategoryAuth,
		Action:   "Log in again.",
	}
}

// NewAccessDeniedError はロール不足エラーを生成する。
// 呼び出し元の実ロールと要求ロール集合をそのまま返す。
func NewAccessDeniedError(userRole Role, required []Role) *APIError {
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}
	return &APIError{
		Code:          ErrCodeAccessDenied,
		Message:       "Access denied. Insufficient permissions.",
		Category:      CategoryForbidden,
		Action:        "Ask a super administrator for the required role.",
		UserRole:      string(userRole),
		RequiredRoles: names,
	}
}

// NewRequestNotFoundError は書類申請未検出エラーを生成する。
func NewRequestNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeRequestNotFound,
		Message:  fmt.Sprintf("Document request not found: %s", id),
		Category: CategoryNotFound,
		Action:   "Check the request ID.",
	}
}

// NewEnrollmentNotFoundError は入学申請未検出エラーを生成する。
func NewEnrollmentNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeEnrollmentNotFound,
		Message:  fmt.Sprintf("Enrollment not found: %s", id),
		Category: CategoryNotFound,
		Action:   "Check the enrollment ID.",
	}
}

// NewInquiryNotFoundError は問い合わせ未検出エラーを生成する。
func NewInquiryNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInquiryNotFound,
		Message:  fmt.Sprintf("Inquiry not found: %s", id),
		Category: CategoryNotFound,
		Action:   "Check the inquiry ID.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: CategoryNotFound,
		Action:   "Check the user ID.",
	}
}

// NewStubNotFoundError は受取票未検出エラーを生成する。
// 照合時の不正なコードもこのエラーになる。
func NewStubNotFoundError(ref string) *APIError {
	return &APIError{
		Code:     ErrCodeStubNotFound,
		Message:  fmt.Sprintf("Stub not found: %s", ref),
		Category: CategoryNotFound,
		Action:   "Check the stub code or ID.",
	}
}

// NewInvalidTransitionError は許可されていないステータス遷移のエラーを生成する。
func NewInvalidTransitionError(kind, from, to string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("Cannot move %s from %s to %s", kind, from, to),
		Category: CategoryLifecycle,
		Action:   "Reload the record and pick a status reachable from its current state.",
	}
}

// NewTooManyAttemptsError はログイン試行回数超過エラーを生成する。
func NewTooManyAttemptsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyAttempts,
		Message:  "Too many failed login attempts. Please try again later.",
		Category: CategorySystem,
		Action:   "Wait a few minutes before trying again.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: CategorySystem,
		Action:   "Please try again later.",
	}
}

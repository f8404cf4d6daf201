package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/settings"
)

// SettingsServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	Get(ctx context.Context) (*model.Settings, error)
	// Public は未ログインでも参照できる項目のみを返す。
	Public(ctx context.Context) (*settings.Public, error)
	Update(ctx context.Context, in settings.UpdateInput, actor *model.User) (*model.Settings, error)
}

// SettingsHandler は学校設定のHTTPハンドラー。
type SettingsHandler struct {
	service SettingsServiceInterface
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// settingsResponse は設定全体のAPIレスポンス。
type settingsResponse struct {
	SchoolName                   string    `json:"schoolName"`
	SchoolAddress                string    `json:"schoolAddress"`
	SchoolEmail                  string    `json:"schoolEmail"`
	SchoolPhone                  string    `json:"schoolPhone"`
	AcademicYear                 string    `json:"academicYear"`
	DocumentProcessingDays       int       `json:"documentProcessingDays"`
	MaxRequestsPerUser           int       `json:"maxRequestsPerUser"`
	AutoArchiveCompletedRequests bool      `json:"autoArchiveCompletedRequests"`
	AutoArchiveDays              int       `json:"autoArchiveDays"`
	StatusUpdateNotifications    bool      `json:"statusUpdateNotifications"`
	UpdatedBy                    *string   `json:"updatedBy,omitempty"`
	UpdatedAt                    time.Time `json:"updatedAt"`
}

// GetPublic は公開設定を返す。
// GET /api/settings/public
func (h *SettingsHandler) GetPublic(w http.ResponseWriter, r *http.Request) {
	pub, err := h.service.Public(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

// Get は設定全体を返す。
// GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

// Update は設定を部分更新する。
// PUT /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in settings.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s, err := h.service.Update(r.Context(), in, user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

func toSettingsResponse(s *model.Settings) settingsResponse {
	return settingsResponse{
		SchoolName:                   s.SchoolName,
		SchoolAddress:                s.SchoolAddress,
		SchoolEmail:                  s.SchoolEmail,
		SchoolPhone:                  s.SchoolPhone,
		AcademicYear:                 s.AcademicYear,
		DocumentProcessingDays:       s.DocumentProcessingDays,
		MaxRequestsPerUser:           s.MaxRequestsPerUser,
		AutoArchiveCompletedRequests: s.AutoArchiveCompletedRequests,
		AutoArchiveDays:              s.AutoArchiveDays,
		StatusUpdateNotifications:    s.StatusUpdateNotifications,
		UpdatedBy:                    s.UpdatedBy,
		UpdatedAt:                    s.UpdatedAt,
	}
}

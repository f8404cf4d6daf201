package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/schoolportal/internal/document"
	"github.com/hitoshi/schoolportal/internal/model"
)

// DocumentServiceInterface は書類申請ハンドラーが必要とするサービスインターフェース。
type DocumentServiceInterface interface {
	Submit(ctx context.Context, userID string, in document.SubmitInput) (*model.DocumentRequest, error)
	ListMine(ctx context.Context, userID string) ([]*model.DocumentRequest, error)
	// GetOwned は本人の申請のみを返す。他人の申請はNotFoundになる。
	GetOwned(ctx context.Context, userID, id string) (*model.DocumentRequest, error)
	List(ctx context.Context, archived bool) ([]*model.DocumentRequest, error)
	TransitionStatus(ctx context.Context, id string, upd document.StatusUpdate, actor *model.User) (*model.DocumentRequest, error)
	Archive(ctx context.Context, id string, actor *model.User) (*model.DocumentRequest, error)
	Restore(ctx context.Context, id string, actor *model.User) (*model.DocumentRequest, error)
	BulkArchiveCompleted(ctx context.Context, actor *model.User) (int64, error)
}

// DocumentHandler は書類申請のHTTPハンドラー。
type DocumentHandler struct {
	service DocumentServiceInterface
}

// NewDocumentHandler はDocumentHandlerを生成する。
func NewDocumentHandler(service DocumentServiceInterface) *DocumentHandler {
	return &DocumentHandler{service: service}
}

// documentResponse は書類申請のAPIレスポンス。
type documentResponse struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	DocumentType string `json:"documentType"`
	Purpose      string `json:"purpose"`

	Surname       string `json:"surname"`
	GivenName     string `json:"givenName"`
	MiddleName    string `json:"middleName,omitempty"`
	DateOfBirth   string `json:"dateOfBirth,omitempty"`
	Sex           string `json:"sex,omitempty"`
	StudentNumber string `json:"studentNumber,omitempty"`
	YearGraduated string `json:"yearGraduated,omitempty"`
	CurrentSchool string `json:"currentSchool,omitempty"`
	ContactNumber string `json:"contactNumber,omitempty"`

	PreferredPickupDate string `json:"preferredPickupDate,omitempty"`
	PreferredPickupTime string `json:"preferredPickupTime,omitempty"`
	AdditionalNotes     string `json:"additionalNotes,omitempty"`

	Status                string     `json:"status"`
	Priority              string     `json:"priority"`
	EstimatedCompletionAt *time.Time `json:"estimatedCompletionAt,omitempty"`

	ReviewNotes     string     `json:"reviewNotes,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	ReviewedBy      *string    `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`

	Archived   bool       `json:"archived"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
	ArchivedBy *string    `json:"archivedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// bulkArchiveResponse は一括アーカイブの結果。
type bulkArchiveResponse struct {
	Message  string `json:"message"`
	Archived int64  `json:"archived"`
}

// Submit は書類申請を受け付ける。
// POST /api/documents/request
func (h *DocumentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in document.SubmitInput
	if !decodeJSON(w, r, &in) {
		return
	}

	req, err := h.service.Submit(r.Context(), user.ID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDocumentResponse(req))
}

// ListMine は本人の申請一覧を返す。
// GET /api/documents/my-requests
func (h *DocumentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	reqs, err := h.service.ListMine(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponses(reqs))
}

// Get は本人の申請を1件返す。
// GET /api/documents/request/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	req, err := h.service.GetOwned(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(req))
}

// ListAll は未アーカイブの全申請を返す。
// GET /api/documents/admin/requests
func (h *DocumentHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// ListArchived はアーカイブ済みの申請を返す。
// GET /api/documents/admin/archived-requests
func (h *DocumentHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request, archived bool) {
	reqs, err := h.service.List(r.Context(), archived)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponses(reqs))
}

// UpdateStatus はステータスを変更する。
// PATCH /api/documents/admin/requests/{id}/status
func (h *DocumentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var upd document.StatusUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	req, err := h.service.TransitionStatus(r.Context(), chi.URLParam(r, "id"), upd, user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(req))
}

// Archive は申請をアーカイブする。
// PATCH /api/documents/admin/requests/{id}/archive
func (h *DocumentHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.service.Archive)
}

// Restore はアーカイブを解除する。
// PATCH /api/documents/admin/requests/{id}/restore
func (h *DocumentHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.service.Restore)
}

func (h *DocumentHandler) setArchived(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id string, actor *model.User) (*model.DocumentRequest, error),
) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	req, err := fn(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(req))
}

// BulkArchiveCompleted は完了済みの申請を一括でアーカイブする。
// POST /api/documents/admin/bulk-archive-completed
func (h *DocumentHandler) BulkArchiveCompleted(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	n, err := h.service.BulkArchiveCompleted(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bulkArchiveResponse{
		Message:  "Completed requests archived",
		Archived: n,
	})
}

// toDocumentResponse はmodel.DocumentRequestからAPIレスポンスに変換する。
func toDocumentResponse(req *model.DocumentRequest) documentResponse {
	return documentResponse{
		ID:                    req.ID,
		UserID:                req.UserID,
		DocumentType:          req.DocumentType,
		Purpose:               req.Purpose,
		Surname:               req.Surname,
		GivenName:             req.GivenName,
		MiddleName:            req.MiddleName,
		DateOfBirth:           req.DateOfBirth,
		Sex:                   req.Sex,
		StudentNumber:         req.StudentNumber,
		YearGraduated:         req.YearGraduated,
		CurrentSchool:         req.CurrentSchool,
		ContactNumber:         req.ContactNumber,
		PreferredPickupDate:   req.PreferredPickupDate,
		PreferredPickupTime:   req.PreferredPickupTime,
		AdditionalNotes:       req.AdditionalNotes,
		Status:                string(req.Status),
		Priority:              string(req.Priority),
		EstimatedCompletionAt: req.EstimatedCompletionAt,
		ReviewNotes:           req.ReviewNotes,
		RejectionReason:       req.RejectionReason,
		ReviewedBy:            req.ReviewedBy,
		ReviewedAt:            req.ReviewedAt,
		CompletedAt:           req.CompletedAt,
		Archived:              req.Archived,
		ArchivedAt:            req.ArchivedAt,
		ArchivedBy:            req.ArchivedBy,
		CreatedAt:             req.CreatedAt,
		UpdatedAt:             req.UpdatedAt,
	}
}

func toDocumentResponses(reqs []*model.DocumentRequest) []documentResponse {
	out := make([]documentResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toDocumentResponse(req))
	}
	return out
}

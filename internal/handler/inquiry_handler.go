package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/schoolportal/internal/model"
)

// InquiryServiceInterface は問い合わせハンドラーが必要とするサービスインターフェース。
type InquiryServiceInterface interface {
	Submit(ctx context.Context, user *model.User, message string) (*model.Inquiry, error)
	ListMine(ctx context.Context, userID string) ([]*model.Inquiry, error)
	List(ctx context.Context, archived bool) ([]*model.Inquiry, error)
	TransitionStatus(ctx context.Context, id, status string, actor *model.User) (*model.Inquiry, error)
	Reply(ctx context.Context, id, message string, actor *model.User) (*model.Inquiry, error)
	Archive(ctx context.Context, id string, actor *model.User) (*model.Inquiry, error)
	Restore(ctx context.Context, id string, actor *model.User) (*model.Inquiry, error)
	ArchiveClosed(ctx context.Context, actorID *string) (int64, error)
}

// InquiryHandler は問い合わせのHTTPハンドラー。
type InquiryHandler struct {
	service InquiryServiceInterface
}

// NewInquiryHandler はInquiryHandlerを生成する。
func NewInquiryHandler(service InquiryServiceInterface) *InquiryHandler {
	return &InquiryHandler{service: service}
}

// inquiryMessageRequest は問い合わせ・返信のリクエストボディ。
type inquiryMessageRequest struct {
	Message string `json:"message"`
}

// inquiryStatusRequest はステータス変更のリクエストボディ。
type inquiryStatusRequest struct {
	Status string `json:"status"`
}

type inquiryReplyResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	RepliedBy string    `json:"repliedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// inquiryResponse は問い合わせのAPIレスポンス。
type inquiryResponse struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"userId"`
	UserRole   string                 `json:"userRole"`
	Message    string                 `json:"message"`
	Status     string                 `json:"status"`
	Replies    []inquiryReplyResponse `json:"replies"`
	Archived   bool                   `json:"archived"`
	ArchivedAt *time.Time             `json:"archivedAt,omitempty"`
	ArchivedBy *string                `json:"archivedBy,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// Submit は問い合わせを受け付ける。
// POST /api/inquiries
func (h *InquiryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req inquiryMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inq, err := h.service.Submit(r.Context(), user, req.Message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInquiryResponse(inq))
}

// ListMine は本人の問い合わせ一覧を返す。
// GET /api/inquiries/my-inquiries
func (h *InquiryHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListMine(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInquiryResponses(list))
}

// ListAll は未アーカイブの全問い合わせを返す。
// GET /api/inquiries/admin
func (h *InquiryHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// ListArchived はアーカイブ済みの問い合わせを返す。
// GET /api/inquiries/admin/archived
func (h *InquiryHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *InquiryHandler) list(w http.ResponseWriter, r *http.Request, archived bool) {
	list, err := h.service.List(r.Context(), archived)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInquiryResponses(list))
}

// UpdateStatus はステータスを変更する。
// PATCH /api/inquiries/admin/{id}/status
func (h *InquiryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req inquiryStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inq, err := h.service.TransitionStatus(r.Context(), chi.URLParam(r, "id"), req.Status, user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInquiryResponse(inq))
}

// Reply は管理者の返信を追加する。
// POST /api/inquiries/admin/{id}/reply
func (h *InquiryHandler) Reply(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req inquiryMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inq, err := h.service.Reply(r.Context(), chi.URLParam(r, "id"), req.Message, user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInquiryResponse(inq))
}

// Archive は問い合わせをアーカイブする。
// PATCH /api/inquiries/admin/{id}/archive
func (h *InquiryHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.service.Archive)
}

// Restore はアーカイブを解除する。
// PATCH /api/inquiries/admin/{id}/restore
func (h *InquiryHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.service.Restore)
}

func (h *InquiryHandler) setArchived(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id string, actor *model.User) (*model.Inquiry, error),
) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	inq, err := fn(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInquiryResponse(inq))
}

// ArchiveClosed はclosedの問い合わせを一括でアーカイブする。
// POST /api/inquiries/admin/archive-closed
func (h *InquiryHandler) ArchiveClosed(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	actorID := user.ID
	n, err := h.service.ArchiveClosed(r.Context(), &actorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkArchiveResponse{
		Message:  "Closed inquiries archived",
		Archived: n,
	})
}

func toInquiryResponse(inq *model.Inquiry) inquiryResponse {
	replies := make([]inquiryReplyResponse, 0, len(inq.Replies))
	for _, rep := range inq.Replies {
		replies = append(replies, inquiryReplyResponse{
			ID:        rep.ID,
			Message:   rep.Message,
			RepliedBy: rep.RepliedBy,
			CreatedAt: rep.CreatedAt,
		})
	}
	return inquiryResponse{
		ID:         inq.ID,
		UserID:     inq.UserID,
		UserRole:   string(inq.UserRole),
		Message:    inq.Message,
		Status:     string(inq.Status),
		Replies:    replies,
		Archived:   inq.Archived,
		ArchivedAt: inq.ArchivedAt,
		ArchivedBy: inq.ArchivedBy,
		CreatedAt:  inq.CreatedAt,
		UpdatedAt:  inq.UpdatedAt,
	}
}

func toInquiryResponses(list []*model.Inquiry) []inquiryResponse {
	out := make([]inquiryResponse, 0, len(list))
	for _, inq := range list {
		out = append(out, toInquiryResponse(inq))
	}
	return out
}

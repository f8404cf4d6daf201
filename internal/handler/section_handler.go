package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/section"
)

// SectionServiceInterface はセクションハンドラーが必要とするサービスインターフェース。
type SectionServiceInterface interface {
	// Create はセクションを作成する。同名・同学年が既にあればDuplicateSectionを返す。
	Create(ctx context.Context, in section.CreateInput) (*model.Section, error)
	List(ctx context.Context) ([]*model.Section, error)
	ListByGrade(ctx context.Context, gradeLevel string) ([]*model.Section, error)
}

// SectionHandler はセクション管理のHTTPハンドラー。
type SectionHandler struct {
	service SectionServiceInterface
}

// NewSectionHandler はSectionHandlerを生成する。
func NewSectionHandler(service SectionServiceInterface) *SectionHandler {
	return &SectionHandler{service: service}
}

// sectionResponse はセクションのAPIレスポンス。
type sectionResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	GradeLevel string    `json:"gradeLevel"`
	Adviser    string    `json:"adviser,omitempty"`
	Capacity   int       `json:"capacity"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Create はセクションを作成する。
// POST /api/sections
func (h *SectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in section.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	s, err := h.service.Create(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSectionResponse(s))
}

// List は全セクションを返す。
// GET /api/sections
func (h *SectionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSectionResponses(list))
}

// ListByGrade は学年で絞り込んだセクションを返す。
// GET /api/sections/grade/{gradeLevel}
func (h *SectionHandler) ListByGrade(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListByGrade(r.Context(), chi.URLParam(r, "gradeLevel"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSectionResponses(list))
}

func toSectionResponse(s *model.Section) sectionResponse {
	return sectionResponse{
		ID:         s.ID,
		Name:       s.Name,
		GradeLevel: s.GradeLevel,
		Adviser:    s.Adviser,
		Capacity:   s.Capacity,
		CreatedAt:  s.CreatedAt,
	}
}

func toSectionResponses(list []*model.Section) []sectionResponse {
	out := make([]sectionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSectionResponse(s))
	}
	return out
}

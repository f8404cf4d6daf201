package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/schoolportal/internal/enrollment"
	"github.com/hitoshi/schoolportal/internal/model"
)

// EnrollmentServiceInterface は入学申請ハンドラーが必要とするサービスインターフェース。
type EnrollmentServiceInterface interface {
	Submit(ctx context.Context, userID string, in enrollment.SubmitInput) (*model.Enrollment, error)
	// MyStatus は本人の最新の申請を返す。未申請の場合はnil。
	MyStatus(ctx context.Context, userID string) (*model.Enrollment, error)
	List(ctx context.Context, archived bool) ([]*model.Enrollment, error)
	ListBySection(ctx context.Context, section, gradeLevel string) ([]*model.Enrollment, error)
	ListByGrade(ctx context.Context, gradeLevel string) ([]*model.Enrollment, error)
	TransitionStatus(ctx context.Context, id string, upd enrollment.StatusUpdate, actor *model.User) (*model.Enrollment, error)
	Archive(ctx context.Context, id string, actor *model.User) (*model.Enrollment, error)
	Restore(ctx context.Context, id string, actor *model.User) (*model.Enrollment, error)
}

// EnrollmentHandler は入学申請のHTTPハンドラー。
type EnrollmentHandler struct {
	service EnrollmentServiceInterface
}

// NewEnrollmentHandler はEnrollmentHandlerを生成する。
func NewEnrollmentHandler(service EnrollmentServiceInterface) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// enrollmentResponse は入学申請のAPIレスポンス。
// 付帯情報は申請時と同じくトップレベルに展開する。
type enrollmentResponse struct {
	ID                     string `json:"id"`
	UserID                 string `json:"userId"`
	EnrollmentNumber       string `json:"enrollmentNumber"`
	EnrollmentType         string `json:"enrollmentType"`
	LearnerReferenceNumber string `json:"learnerReferenceNumber,omitempty"`

	Surname       string `json:"surname"`
	FirstName     string `json:"firstName"`
	MiddleName    string `json:"middleName,omitempty"`
	Extension     string `json:"extension,omitempty"`
	DateOfBirth   string `json:"dateOfBirth,omitempty"`
	Sex           string `json:"sex,omitempty"`
	Age           string `json:"age,omitempty"`
	ContactNumber string `json:"contactNumber,omitempty"`
	EmailAddress  string `json:"emailAddress,omitempty"`

	LastSchoolAttended string `json:"lastSchoolAttended,omitempty"`
	GradeToEnroll      string `json:"gradeToEnroll"`
	Track              string `json:"track,omitempty"`
	Section            string `json:"section,omitempty"`

	model.EnrollmentDetails

	Status          string     `json:"status"`
	ReviewNotes     string     `json:"reviewNotes,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	ReviewedBy      *string    `json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`

	Archived   bool       `json:"archived"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
	ArchivedBy *string    `json:"archivedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// myStatusResponse は本人の申請状況。
type myStatusResponse struct {
	HasEnrollment bool                `json:"hasEnrollment"`
	Message       string              `json:"message,omitempty"`
	Enrollment    *enrollmentResponse `json:"enrollment,omitempty"`
}

// Submit は入学申請を受け付ける。
// POST /api/enrollments
func (h *EnrollmentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in enrollment.SubmitInput
	if !decodeJSON(w, r, &in) {
		return
	}

	e, err := h.service.Submit(r.Context(), user.ID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEnrollmentResponse(e))
}

// MyStatus は本人の最新の申請状況を返す。
// GET /api/enrollments/my-status
func (h *EnrollmentHandler) MyStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	e, err := h.service.MyStatus(r.Context(), user.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if e == nil {
		writeJSON(w, http.StatusOK, myStatusResponse{
			HasEnrollment: false,
			Message:       "No enrollment application found",
		})
		return
	}

	resp := toEnrollmentResponse(e)
	writeJSON(w, http.StatusOK, myStatusResponse{HasEnrollment: true, Enrollment: &resp})
}

// ListBySection はセクションと学年で絞り込んだ申請を返す。
// GET /api/enrollments?section=&gradeLevel=
func (h *EnrollmentHandler) ListBySection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.service.ListBySection(r.Context(), q.Get("section"), q.Get("gradeLevel"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentResponses(list))
}

// ListByGrade は学年で絞り込んだ申請を返す。
// GET /api/enrollments/grade/{gradeLevel}
func (h *EnrollmentHandler) ListByGrade(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListByGrade(r.Context(), chi.URLParam(r, "gradeLevel"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentResponses(list))
}

// ListAll は未アーカイブの全申請を返す。
// GET /api/enrollments/admin
func (h *EnrollmentHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// ListArchived はアーカイブ済みの申請を返す。
// GET /api/enrollments/admin/archived
func (h *EnrollmentHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *EnrollmentHandler) list(w http.ResponseWriter, r *http.Request, archived bool) {
	list, err := h.service.List(r.Context(), archived)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentResponses(list))
}

// UpdateStatus はステータスとセクションを変更する。
// PUT /api/enrollments/{id}/status
func (h *EnrollmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var upd enrollment.StatusUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	e, err := h.service.TransitionStatus(r.Context(), chi.URLParam(r, "id"), upd, user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEnrollmentResponse(e))
}

// Archive は申請をアーカイブする。
// PATCH /api/enrollments/{id}/archive
func (h *EnrollmentHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.service.Archive)
}

// Restore はアーカイブを解除する。
// PATCH /api/enrollments/{id}/restore
func (h *EnrollmentHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.service.Restore)
}

func (h *EnrollmentHandler) setArchived(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id string, actor *model.User) (*model.Enrollment, error),
) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	e, err := fn(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEnrollmentResponse(e))
}

// toEnrollmentResponse はmodel.EnrollmentからAPIレスポンスに変換する。
func toEnrollmentResponse(e *model.Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:                     e.ID,
		UserID:                 e.UserID,
		EnrollmentNumber:       e.EnrollmentNumber,
		EnrollmentType:         e.EnrollmentType,
		LearnerReferenceNumber: e.LearnerReferenceNumber,
		Surname:                e.Surname,
		FirstName:              e.FirstName,
		MiddleName:             e.MiddleName,
		Extension:              e.Extension,
		DateOfBirth:            e.DateOfBirth,
		Sex:                    e.Sex,
		Age:                    e.Age,
		ContactNumber:          e.ContactNumber,
		EmailAddress:           e.EmailAddress,
		LastSchoolAttended:     e.LastSchoolAttended,
		GradeToEnroll:          e.GradeToEnroll,
		Track:                  e.Track,
		Section:                e.Section,
		EnrollmentDetails:      e.Details,
		Status:                 string(e.Status),
		ReviewNotes:            e.ReviewNotes,
		RejectionReason:        e.RejectionReason,
		ReviewedBy:             e.ReviewedBy,
		ReviewedAt:             e.ReviewedAt,
		Archived:               e.Archived,
		ArchivedAt:             e.ArchivedAt,
		ArchivedBy:             e.ArchivedBy,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
}

func toEnrollmentResponses(list []*model.Enrollment) []enrollmentResponse {
	out := make([]enrollmentResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEnrollmentResponse(e))
	}
	return out
}

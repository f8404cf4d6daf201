package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/stub"
)

// StubServiceInterface は受取票ハンドラーが必要とするサービスインターフェース。
type StubServiceInterface interface {
	Create(ctx context.Context, userID string, form model.StubForm, in stub.CreateInput) (*model.PickupStub, error)
	ListMine(ctx context.Context, userID string, form model.StubForm) ([]*model.PickupStub, error)
	// Get は本人または照合権限を持つ管理者にのみ受取票を返す。
	Get(ctx context.Context, form model.StubForm, id string, user *model.User) (*model.PickupStub, error)
	List(ctx context.Context, form model.StubForm, status, search string) ([]*model.PickupStub, error)
	TransitionStatus(ctx context.Context, form model.StubForm, id string, upd stub.StatusUpdate, actor *model.User) (*model.PickupStub, error)
	Verify(ctx context.Context, form model.StubForm, code string) (*model.PickupStub, error)
}

// StubHandler は受取票のHTTPハンドラー。書類種別ごとに1つ生成する。
type StubHandler struct {
	service StubServiceInterface
	form    model.StubForm
}

// NewStubHandler はform用のStubHandlerを生成する。
func NewStubHandler(service StubServiceInterface, form model.StubForm) *StubHandler {
	return &StubHandler{service: service, form: form}
}

// stubResponse は受取票のAPIレスポンス。付帯情報はトップレベルに展開する。
type stubResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Form     string `json:"form"`
	StubCode string `json:"stubCode"`

	Surname                string `json:"surname"`
	FirstName              string `json:"firstName"`
	MiddleName             string `json:"middleName,omitempty"`
	Sex                    string `json:"sex,omitempty"`
	DateOfBirth            string `json:"dateOfBirth,omitempty"`
	LearnerReferenceNumber string `json:"learnerReferenceNumber,omitempty"`
	GradeLevel             string `json:"gradeLevel,omitempty"`
	SchoolYear             string `json:"schoolYear,omitempty"`
	Purpose                string `json:"purpose"`

	model.StubDetails

	Status         string     `json:"status"`
	RegistrarNotes string     `json:"registrarNotes,omitempty"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
	VerifiedAt     *time.Time `json:"verifiedAt,omitempty"`
	VerifiedBy     *string    `json:"verifiedBy,omitempty"`
	ReadyAt        *time.Time `json:"readyAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Create は受取票を発行する。
// POST /api/form137-stubs/create
func (h *StubHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in stub.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	st, err := h.service.Create(r.Context(), user.ID, h.form, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toStubResponse(st))
}

// ListMine は本人の受取票一覧を返す。
// GET /api/form137-stubs/my-stubs
func (h *StubHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListMine(r.Context(), user.ID, h.form)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStubResponses(list))
}

// Get は受取票を1件返す。
// GET /api/form137-stubs/{id}
func (h *StubHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	st, err := h.service.Get(r.Context(), h.form, chi.URLParam(r, "id"), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStubResponse(st))
}

// List は管理者向けに受取票を返す。
// GET /api/form137-stubs?status=&search=
func (h *StubHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.service.List(r.Context(), h.form, q.Get("status"), q.Get("search"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStubResponses(list))
}

// UpdateStatus はステータスと窓口メモを変更する。
// PUT /api/form137-stubs/{id}/status
func (h *StubHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var upd stub.StatusUpdate
	if !decodeJSON(w, r, &upd) {
		return
	}

	st, err := h.service.TransitionStatus(r.Context(), h.form, chi.URLParam(r, "id"), upd, user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toStubResponse(st))
}

// Verify は窓口で受取票コードを照合する。
// GET /api/form137-stubs/verify/{stubCode}
func (h *StubHandler) Verify(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Verify(r.Context(), h.form, chi.URLParam(r, "stubCode"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStubResponse(st))
}

// toStubResponse はmodel.PickupStubからAPIレスポンスに変換する。
func toStubResponse(s *model.PickupStub) stubResponse {
	return stubResponse{
		ID:                     s.ID,
		UserID:                 s.UserID,
		Form:                   string(s.Form),
		StubCode:               s.StubCode,
		Surname:                s.Surname,
		FirstName:              s.FirstName,
		MiddleName:             s.MiddleName,
		Sex:                    s.Sex,
		DateOfBirth:            s.DateOfBirth,
		LearnerReferenceNumber: s.LearnerReferenceNumber,
		GradeLevel:             s.GradeLevel,
		SchoolYear:             s.SchoolYear,
		Purpose:                s.Purpose,
		StubDetails:            s.Details,
		Status:                 string(s.Status),
		RegistrarNotes:         s.RegistrarNotes,
		SubmittedAt:            s.SubmittedAt,
		VerifiedAt:             s.VerifiedAt,
		VerifiedBy:             s.VerifiedBy,
		ReadyAt:                s.ReadyAt,
		CompletedAt:            s.CompletedAt,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

func toStubResponses(list []*model.PickupStub) []stubResponse {
	out := make([]stubResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toStubResponse(s))
	}
	return out
}

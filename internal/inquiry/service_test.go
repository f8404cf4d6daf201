package inquiry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/schoolportal/internal/metrics"
	"github.com/hitoshi/schoolportal/internal/model"
	"github.com/hitoshi/schoolportal/internal/notify"
	"github.com/hitoshi/schoolportal/internal/repository"
	"github.com/hitoshi/schoolportal/internal/security"
)

// --- モック定義 ---

type mockInquiryRepo struct {
	createFn        func(ctx context.Context, inq *model.Inquiry) error
	findByIDFn      func(ctx context.Context, id string) (*model.Inquiry, error)
	listByUserIDFn  func(ctx context.Context, userID string) ([]*model.Inquiry, error)
	listFn          func(ctx context.Context, archived bool) ([]*model.Inquiry, error)
	updateFn        func(ctx context.Context, inq *model.Inquiry) error
	addReplyFn      func(ctx context.Context, reply *model.InquiryReply) error
	archiveClosedFn func(ctx context.Context, archivedBy *string) (int64, error)
}

var _ repository.InquiryRepository = (*mockInquiryRepo)(nil)

func (m *mockInquiryRepo) Create(ctx context.Context, inq *model.Inquiry) error {
	if m.createFn != nil {
		return m.createFn(ctx, inq)
	}
	return nil
}

func (m *mockInquiryRepo) FindByID(ctx context.Context, id string) (*model.Inquiry, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockInquiryRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Inquiry, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockInquiryRepo) List(ctx context.Context, archived bool) ([]*model.Inquiry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, archived)
	}
	return nil, nil
}

func (m *mockInquiryRepo) Update(ctx context.Context, inq *model.Inquiry) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, inq)
	}
	return nil
}

func (m *mockInquiryRepo) AddReply(ctx context.Context, reply *model.InquiryReply) error {
	if m.addReplyFn != nil {
		return m.addReplyFn(ctx, reply)
	}
	return nil
}

func (m *mockInquiryRepo) ArchiveClosed(ctx context.Context, archivedBy *string) (int64, error) {
	if m.archiveClosedFn != nil {
		return m.archiveClosedFn(ctx, archivedBy)
	}
	return 0, nil
}

// newStoreRepo はmap上で動作するmockInquiryRepoを返す。
func newStoreRepo() (*mockInquiryRepo, map[string]*model.Inquiry) {
	store := make(map[string]*model.Inquiry)
	return &mockInquiryRepo{
		createFn: func(_ context.Context, inq *model.Inquiry) error {
			cp := *inq
			store[inq.ID] = &cp
			return nil
		},
		findByIDFn: func(_ context.Context, id string) (*model.Inquiry, error) {
			if inq, ok := store[id]; ok {
				cp := *inq
				cp.Replies = append([]model.InquiryReply{}, inq.Replies...)
				return &cp, nil
			}
			return nil, nil
		},
		listByUserIDFn: func(_ context.Context, userID string) ([]*model.Inquiry, error) {
			var out []*model.Inquiry
			for _, inq := range store {
				if inq.UserID == userID {
					out = append(out, inq)
				}
			}
			return out, nil
		},
		updateFn: func(_ context.Context, inq *model.Inquiry) error {
			existing, ok := store[inq.ID]
			if !ok {
				return repository.ErrNotFound
			}
			cp := *inq
			cp.Replies = existing.Replies
			store[inq.ID] = &cp
			return nil
		},
		addReplyFn: func(_ context.Context, reply *model.InquiryReply) error {
			inq, ok := store[reply.InquiryID]
			if !ok {
				return repository.ErrNotFound
			}
			inq.Replies = append(inq.Replies, *reply)
			return nil
		},
	}, store
}

type recordingDispatcher struct {
	events []notify.Event
}

func (r *recordingDispatcher) Dispatch(_ context.Context, ev notify.Event) {
	r.events = append(r.events, ev)
}

func newTestService() (*Service, *mockInquiryRepo, map[string]*model.Inquiry, *recordingDispatcher) {
	repo, store := newStoreRepo()
	d := &recordingDispatcher{}
	svc := NewService(repo, security.NewTextSanitizer(), d, metrics.NewCollector(prometheus.NewRegistry()))
	svc.now = func() time.Time { return time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC) }
	return svc, repo, store, d
}

var (
	student = &model.User{ID: "11111111-1111-1111-1111-111111111111", Role: model.RoleUser}
	staff   = &model.User{ID: "22222222-2222-2222-2222-222222222222", Role: model.RoleAdminDocument}
)

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != code {
		t.Fatalf("code = %q, want %q", apiErr.Code, code)
	}
}

func TestSubmit_StoresSanitizedMessageAndRole(t *testing.T) {
	svc, _, store, _ := newTestService()

	inq, err := svc.Submit(context.Background(), student, "  When is <b>enrollment</b>?  ")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if inq.Message != "When is enrollment?" {
		t.Errorf("Message = %q", inq.Message)
	}
	if inq.Status != model.InquiryPending || inq.UserRole != model.RoleUser {
		t.Errorf("Status = %q, UserRole = %q", inq.Status, inq.UserRole)
	}
	if _, ok := store[inq.ID]; !ok {
		t.Error("inquiry should be stored")
	}
}

func TestSubmit_EmptyOrMarkupOnlyMessage_IsRejected(t *testing.T) {
	for _, msg := range []string{"", "   ", "<script>alert(1)</script>"} {
		svc, _, store, _ := newTestService()
		_, err := svc.Submit(context.Background(), student, msg)
		assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)
		if len(store) != 0 {
			t.Errorf("message %q: nothing should be stored", msg)
		}
	}
}

func TestListMine_ExcludesArchived(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	kept, _ := svc.Submit(ctx, student, "first question")
	archived, _ := svc.Submit(ctx, student, "second question")
	if _, err := svc.Archive(ctx, archived.ID, staff); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	mine, err := svc.ListMine(ctx, student.ID)
	if err != nil {
		t.Fatalf("ListMine() error = %v", err)
	}
	if len(mine) != 1 || mine[0].ID != kept.ID {
		t.Errorf("ListMine() = %v, want only the unarchived inquiry", mine)
	}
}

func TestTransitionStatus_FollowsInquiryLifecycle(t *testing.T) {
	svc, _, store, d := newTestService()
	ctx := context.Background()
	inq, _ := svc.Submit(ctx, student, "question")

	got, err := svc.TransitionStatus(ctx, inq.ID, "resolved", staff)
	if err != nil {
		t.Fatalf("TransitionStatus() error = %v", err)
	}
	if got.Status != model.InquiryResolved {
		t.Errorf("Status = %q", got.Status)
	}
	if len(d.events) != 1 || d.events[0].Kind != notify.KindInquiry {
		t.Errorf("events = %+v", d.events)
	}

	if _, err := svc.TransitionStatus(ctx, inq.ID, "closed", staff); err != nil {
		t.Fatalf("to closed: %v", err)
	}
	_, err = svc.TransitionStatus(ctx, inq.ID, "inProgress", staff)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidTransition)
	if store[inq.ID].Status != model.InquiryClosed {
		t.Errorf("stored status = %q, want closed", store[inq.ID].Status)
	}

	_, err = svc.TransitionStatus(ctx, inq.ID, "archived", staff)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidStatus)
}

func TestReply_AppendsReplyAndReturnsFreshInquiry(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	inq, _ := svc.Submit(ctx, student, "question")

	got, err := svc.Reply(ctx, inq.ID, "Enrollment opens in <em>June</em>.", staff)
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if len(got.Replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(got.Replies))
	}
	r := got.Replies[0]
	if r.Message != "Enrollment opens in June." || r.RepliedBy != staff.ID {
		t.Errorf("reply = %+v", r)
	}
}

func TestReply_Errors(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	inq, _ := svc.Submit(ctx, student, "question")

	_, err := svc.Reply(ctx, inq.ID, " ", staff)
	assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)

	_, err = svc.Reply(ctx, uuid.New().String(), "hello", staff)
	assertAPIErrorCode(t, err, model.ErrCodeInquiryNotFound)

	_, err = svc.Reply(ctx, "bad-id", "hello", staff)
	assertAPIErrorCode(t, err, model.ErrCodeInquiryNotFound)
}

func TestArchiveClosed_PassesActor(t *testing.T) {
	svc, repo, _, _ := newTestService()
	var gotBy *string
	repo.archiveClosedFn = func(_ context.Context, by *string) (int64, error) {
		gotBy = by
		return 2, nil
	}

	n, err := svc.ArchiveClosed(context.Background(), nil)
	if err != nil {
		t.Fatalf("ArchiveClosed() error = %v", err)
	}
	if n != 2 || gotBy != nil {
		t.Errorf("n = %d, by = %v; want 2, nil", n, gotBy)
	}
}

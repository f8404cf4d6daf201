package model

import "time"

// DocumentStatus は書類申請のライフサイクル状態。
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentApproved   DocumentStatus = "approved"
	DocumentRejected   DocumentStatus = "rejected"
	DocumentCompleted  DocumentStatus = "completed"
)

// DocumentStatuses は書類申請のステータス一覧。
func DocumentStatuses() []DocumentStatus {
	return []DocumentStatus{DocumentPending, DocumentProcessing, DocumentApproved, DocumentRejected, DocumentCompleted}
}

// IsValid は定義済みステータスかどうかを返す。
func (s DocumentStatus) IsValid() bool {
	for _, known := range DocumentStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// IsActive は処理中（完了・却下以外）の申請かを返す。
func (s DocumentStatus) IsActive() bool {
	return s != DocumentCompleted && s != DocumentRejected
}

// 申請可能な書類種別
var DocumentTypes = []string{
	"form137",
	"form138",
	"diploma",
	"sf10",
	"sf9",
	"goodMoral",
	"enrollment",
	"transcript",
}

// Priority は書類申請の処理優先度。
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// DocumentRequest は書類発行の申請を表す。
// 申請者本人が作成し、管理者のみがステータスを変更する。削除はせずアーカイブする。
type DocumentRequest struct {
	ID           string
	UserID       string
	DocumentType string
	Purpose      string

	Surname       string
	GivenName     string
	MiddleName    string
	DateOfBirth   string
	Sex           string
	StudentNumber string
	YearGraduated string
	CurrentSchool string
	ContactNumber string

	PreferredPickupDate string
	PreferredPickupTime string
	AdditionalNotes     string

	Status                DocumentStatus
	Priority              Priority
	EstimatedCompletionAt *time.Time

	ReviewNotes     string
	RejectionReason string
	ReviewedBy      *string
	ReviewedAt      *time.Time
	CompletedAt     *time.Time

	Archived   bool
	ArchivedAt *time.Time
	ArchivedBy *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

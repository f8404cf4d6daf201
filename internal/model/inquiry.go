package model

import "time"

// InquiryStatus は問い合わせの対応状況。
type InquiryStatus string

const (
	InquiryPending    InquiryStatus = "pending"
	InquiryInProgress InquiryStatus = "inProgress"
	InquiryResolved   InquiryStatus = "resolved"
	InquiryRejected   InquiryStatus = "rejected"
	InquiryClosed     InquiryStatus = "closed"
)

// InquiryStatuses は問い合わせのステータス一覧。
func InquiryStatuses() []InquiryStatus {
	return []InquiryStatus{InquiryPending, InquiryInProgress, InquiryResolved, InquiryRejected, InquiryClosed}
}

// IsValid は定義済みステータスかどうかを返す。
func (s InquiryStatus) IsValid() bool {
	for _, known := range InquiryStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Inquiry は利用者から学校への問い合わせ。
type Inquiry struct {
	ID       string
	UserID   string
	UserRole Role
	Message  string
	Status   InquiryStatus
	Replies  []InquiryReply

	Archived   bool
	ArchivedAt *time.Time
	ArchivedBy *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InquiryReply は問い合わせに対する管理者の返信。
type InquiryReply struct {
	ID        string
	InquiryID string
	Message   string
	RepliedBy string
	CreatedAt time.Time
}

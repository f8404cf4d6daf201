package model

import "time"

// StubForm は受取票を発行する書類の種別。
type StubForm string

const (
	StubForm137 StubForm = "form137"
	StubForm138 StubForm = "form138"
)

// IsValid は定義済みの書類種別かどうかを返す。
func (f StubForm) IsValid() bool {
	return f == StubForm137 || f == StubForm138
}

// CodePrefix は受取票コードの接頭辞（F137 / F138）を返す。
func (f StubForm) CodePrefix() string {
	switch f {
	case StubForm137:
		return "F137"
	case StubForm138:
		return "F138"
	default:
		return "STUB"
	}
}

// StubStatus は受取票の処理状態。
type StubStatus string

const (
	StubGenerated  StubStatus = "stub-generated"
	StubSubmitted  StubStatus = "submitted-to-registrar"
	StubVerified   StubStatus = "verified-by-registrar"
	StubProcessing StubStatus = "processing"
	StubReady      StubStatus = "ready-for-pickup"
	StubCompleted  StubStatus = "completed"
	StubCancelled  StubStatus = "cancelled"
)

// StubStatuses は受取票のステータス一覧。
func StubStatuses() []StubStatus {
	return []StubStatus{StubGenerated, StubSubmitted, StubVerified, StubProcessing, StubReady, StubCompleted, StubCancelled}
}

// IsValid は定義済みステータスかどうかを返す。
func (s StubStatus) IsValid() bool {
	for _, known := range StubStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// StubDetails は受取票の付帯情報。検索に使わない項目をJSONBカラムに保存する。
type StubDetails struct {
	PlaceOfBirth string `json:"placeOfBirth,omitempty"`
	Barangay     string `json:"barangay,omitempty"`
	City         string `json:"city,omitempty"`
	Province     string `json:"province,omitempty"`

	// Form 137（転出先への送付）
	ReceivingSchool        string `json:"receivingSchool,omitempty"`
	ReceivingSchoolAddress string `json:"receivingSchoolAddress,omitempty"`

	// Form 138（成績表の再発行）
	Section        string `json:"section,omitempty"`
	Adviser        string `json:"adviser,omitempty"`
	NumberOfCopies string `json:"numberOfCopies,omitempty"`

	ParentGuardianName    string `json:"parentGuardianName,omitempty"`
	ParentGuardianAddress string `json:"parentGuardianAddress,omitempty"`
	ParentGuardianContact string `json:"parentGuardianContact,omitempty"`
}

// PickupStub はForm 137/138の受取票を表す。
// StubCode は窓口で照合する一意のコードで、作成時に採番する。
type PickupStub struct {
	ID       string
	UserID   string
	Form     StubForm
	StubCode string

	Surname                string
	FirstName              string
	MiddleName             string
	Sex                    string
	DateOfBirth            string
	LearnerReferenceNumber string
	GradeLevel             string
	SchoolYear             string
	Purpose                string

	Details StubDetails

	Status         StubStatus
	RegistrarNotes string
	SubmittedAt    *time.Time
	VerifiedAt     *time.Time
	VerifiedBy     *string
	ReadyAt        *time.Time
	CompletedAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StubFilter は管理者向け一覧の絞り込み条件。空の項目は条件に含めない。
type StubFilter struct {
	Status StubStatus
	// Search は受取票コード・氏名・LRNの部分一致（大文字小文字を区別しない）。
	Search string
}

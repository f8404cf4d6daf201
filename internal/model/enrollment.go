package model

import "time"

// EnrollmentStatus は入学申請のライフサイクル状態。
type EnrollmentStatus string

const (
	EnrollmentPending     EnrollmentStatus = "pending"
	EnrollmentUnderReview EnrollmentStatus = "under-review"
	EnrollmentApproved    EnrollmentStatus = "approved"
	EnrollmentRejected    EnrollmentStatus = "rejected"
	EnrollmentEnrolled    EnrollmentStatus = "enrolled"
)

// EnrollmentStatuses は入学申請のステータス一覧。
func EnrollmentStatuses() []EnrollmentStatus {
	return []EnrollmentStatus{EnrollmentPending, EnrollmentUnderReview, EnrollmentApproved, EnrollmentRejected, EnrollmentEnrolled}
}

// IsValid は定義済みステータスかどうかを返す。
func (s EnrollmentStatus) IsValid() bool {
	for _, known := range EnrollmentStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// 入学区分
const (
	EnrollmentTypeNew        = "new"
	EnrollmentTypeOld        = "old"
	EnrollmentTypeTransferee = "transferee"
)

// EnrollmentDetails は入学申請の付帯情報（住所・保護者・健康情報など）。
// 検索条件に使わない項目をまとめてJSONBカラムに保存する。
type EnrollmentDetails struct {
	PlaceOfBirth string `json:"placeOfBirth,omitempty"`
	Religion     string `json:"religion,omitempty"`
	Citizenship  string `json:"citizenship,omitempty"`

	HouseNumber string `json:"houseNumber,omitempty"`
	Street      string `json:"street,omitempty"`
	Barangay    string `json:"barangay,omitempty"`
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	ZipCode     string `json:"zipCode,omitempty"`

	SchoolAddress string `json:"schoolAddress,omitempty"`
	SchoolYear    string `json:"schoolYear,omitempty"`

	FatherName            string `json:"fatherName,omitempty"`
	FatherOccupation      string `json:"fatherOccupation,omitempty"`
	FatherContactNumber   string `json:"fatherContactNumber,omitempty"`
	MotherName            string `json:"motherName,omitempty"`
	MotherOccupation      string `json:"motherOccupation,omitempty"`
	MotherContactNumber   string `json:"motherContactNumber,omitempty"`
	GuardianName          string `json:"guardianName,omitempty"`
	GuardianRelationship  string `json:"guardianRelationship,omitempty"`
	GuardianOccupation    string `json:"guardianOccupation,omitempty"`
	GuardianContactNumber string `json:"guardianContactNumber,omitempty"`

	EmergencyContactName         string `json:"emergencyContactName,omitempty"`
	EmergencyContactRelationship string `json:"emergencyContactRelationship,omitempty"`
	EmergencyContactNumber       string `json:"emergencyContactNumber,omitempty"`
	EmergencyContactAddress      string `json:"emergencyContactAddress,omitempty"`

	SpecialNeeds string `json:"specialNeeds,omitempty"`
	Allergies    string `json:"allergies,omitempty"`
	Medications  string `json:"medications,omitempty"`

	// 提出書類のチェック
	ReportCard         bool `json:"reportCard,omitempty"`
	GoodMoral          bool `json:"goodMoral,omitempty"`
	BirthCertificate   bool `json:"birthCertificate,omitempty"`
	MedicalCertificate bool `json:"medicalCertificate,omitempty"`
	ParentID           bool `json:"parentId,omitempty"`
	IDPictures         bool `json:"idPictures,omitempty"`

	AgreementAccepted bool `json:"agreementAccepted,omitempty"`
}

// Enrollment は入学申請を表す。
// Section はセクション名による弱参照であり、外部キーではない。
type Enrollment struct {
	ID                     string
	UserID                 string
	EnrollmentNumber       string
	EnrollmentType         string
	LearnerReferenceNumber string

	Surname       string
	FirstName     string
	MiddleName    string
	Extension     string
	DateOfBirth   string
	Sex           string
	Age           string
	ContactNumber string
	EmailAddress  string

	LastSchoolAttended string
	GradeToEnroll      string
	Track              string
	Section            string

	Details EnrollmentDetails

	Status          EnrollmentStatus
	ReviewNotes     string
	RejectionReason string
	ReviewedBy      *string
	ReviewedAt      *time.Time

	Archived   bool
	ArchivedAt *time.Time
	ArchivedBy *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

package model

import "time"

// Settings は学校全体の設定（シングルトン）。
type Settings struct {
	SchoolName    string
	SchoolAddress string
	SchoolEmail   string
	SchoolPhone   string
	AcademicYear  string

	DocumentProcessingDays       int
	MaxRequestsPerUser           int
	AutoArchiveCompletedRequests bool
	AutoArchiveDays              int
	StatusUpdateNotifications    bool

	UpdatedBy *string
	UpdatedAt time.Time
}

// DefaultSettings は初期設定値を返す。
// マイグレーションで投入する行と同じ値。
func DefaultSettings() *Settings {
	return &Settings{
		SchoolName:                   "Eastern Luzon Technological National High School",
		SchoolAddress:                "123 School Street, City, Province",
		SchoolEmail:                  "admin@eltnhs.edu.ph",
		SchoolPhone:                  "(123) 456-7890",
		AcademicYear:                 "2024-2025",
		DocumentProcessingDays:       3,
		MaxRequestsPerUser:           5,
		AutoArchiveCompletedRequests: true,
		AutoArchiveDays:              90,
		StatusUpdateNotifications:    true,
	}
}

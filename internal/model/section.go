package model

import (
	"regexp"
	"strings"
	"time"
)

// DefaultSectionCapacity はcapacity未指定時の定員。
const DefaultSectionCapacity = 40

// Section は学年ごとのクラス編成を表す。
// (Name, GradeLevel) の組で一意。
type Section struct {
	ID         string
	Name       string
	GradeLevel string
	Adviser    string
	Capacity   int
	CreatedAt  time.Time
}

var gradePrefix = regexp.MustCompile(`(?i)^grade\s*`)

// NormalizeGradeLevel は学年表記を "Grade N" 形式に揃える。
// "7"、"grade 7"、"Grade7" はいずれも "Grade 7" になる。
// 数字以外の表記（"Kinder" など）は前後の空白を除いてそのまま返す。
func NormalizeGradeLevel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	n := strings.TrimSpace(gradePrefix.ReplaceAllString(s, ""))
	if n == "" || strings.Trim(n, "0123456789") != "" {
		return s
	}
	return "Grade " + n
}

// NormalizeSectionName はセクション名を比較用に正規化する。
func NormalizeSectionName(s string) string {
	return strings.TrimSpace(s)
}

// Package lifecycle は申請レコードのステータス遷移規則を定義する。
//
// 各レコード種別ごとに許可された遷移を表で宣言し、
// 表にない遷移は INVALID_TRANSITION の APIError として拒否する。
// 同一ステータスへの更新は遷移とみなさず常に許可する（管理者項目のみの更新に使う）。
package lifecycle

import (
	"github.com/hitoshi/schoolportal/internal/model"
)

// Machine はステータス型 S の遷移表を保持する。
type Machine[S ~string] struct {
	kind        string
	transitions map[S]map[S]struct{}
}

// newMachine は遷移表からMachineを構築する。
func newMachine[S ~string](kind string, table map[S][]S) *Machine[S] {
	m := &Machine[S]{
		kind:        kind,
		transitions: make(map[S]map[S]struct{}, len(table)),
	}
	for from, tos := range table {
		set := make(map[S]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		m.transitions[from] = set
	}
	return m
}

// CanTransition は from から to への遷移が許可されているかを返す。
func (m *Machine[S]) CanTransition(from, to S) bool {
	if from == to {
		return true
	}
	_, ok := m.transitions[from][to]
	return ok
}

// IsTerminal は遷移先を持たない終端状態かどうかを返す。
func (m *Machine[S]) IsTerminal(s S) bool {
	return len(m.transitions[s]) == 0
}

// Next は s から遷移可能なステータスを返す。順序は不定。
func (m *Machine[S]) Next(s S) []S {
	out := make([]S, 0, len(m.transitions[s]))
	for to := range m.transitions[s] {
		out = append(out, to)
	}
	return out
}

// Validate は遷移を検証し、不許可の場合は *model.APIError を返す。
func (m *Machine[S]) Validate(from, to S) error {
	if m.CanTransition(from, to) {
		return nil
	}
	return model.NewInvalidTransitionError(m.kind, string(from), string(to))
}

// Documents は書類申請の遷移表。
var Documents = newMachine("document request", map[model.DocumentStatus][]model.DocumentStatus{
	model.DocumentPending:    {model.DocumentProcessing, model.DocumentApproved, model.DocumentRejected},
	model.DocumentProcessing: {model.DocumentApproved, model.DocumentCompleted, model.DocumentRejected},
	model.DocumentApproved:   {model.DocumentProcessing, model.DocumentCompleted},
	model.DocumentRejected:   nil,
	model.DocumentCompleted:  nil,
})

// Enrollments は入学申請の遷移表。
// enrolled への遷移にはセクションの割り当てが別途必要（enrollmentパッケージで検証）。
var Enrollments = newMachine("enrollment", map[model.EnrollmentStatus][]model.EnrollmentStatus{
	model.EnrollmentPending:     {model.EnrollmentUnderReview, model.EnrollmentApproved, model.EnrollmentRejected, model.EnrollmentEnrolled},
	model.EnrollmentUnderReview: {model.EnrollmentApproved, model.EnrollmentRejected, model.EnrollmentEnrolled},
	model.EnrollmentApproved:    {model.EnrollmentEnrolled, model.EnrollmentRejected},
	model.EnrollmentRejected:    nil,
	model.EnrollmentEnrolled:    nil,
})

// Inquiries は問い合わせの遷移表。
var Inquiries = newMachine("inquiry", map[model.InquiryStatus][]model.InquiryStatus{
	model.InquiryPending:    {model.InquiryInProgress, model.InquiryResolved, model.InquiryRejected, model.InquiryClosed},
	model.InquiryInProgress: {model.InquiryResolved, model.InquiryRejected, model.InquiryClosed},
	model.InquiryResolved:   {model.InquiryInProgress, model.InquiryClosed},
	model.InquiryRejected:   {model.InquiryClosed},
	model.InquiryClosed:     nil,
})

// Stubs は受取票の遷移表。窓口での確認順に進み、受取前ならいつでも取り消せる。
var Stubs = newMachine("pickup stub", map[model.StubStatus][]model.StubStatus{
	model.StubGenerated:  {model.StubSubmitted, model.StubCancelled},
	model.StubSubmitted:  {model.StubVerified, model.StubCancelled},
	model.StubVerified:   {model.StubProcessing, model.StubReady, model.StubCancelled},
	model.StubProcessing: {model.StubReady, model.StubCancelled},
	model.StubReady:      {model.StubCompleted, model.StubCancelled},
	model.StubCompleted:  nil,
	model.StubCancelled:  nil,
})

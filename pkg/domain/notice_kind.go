package domain

import dErrors "famlink/pkg/domain-errors"

// NoticeKind groups notifications for client-side display. It plays no role
// in delivery routing.
type NoticeKind string

// Supported notice kinds.
const (
	NoticeKindGoal   NoticeKind = "GOAL"
	NoticeKindSystem NoticeKind = "SYSTEM"
)

// validNoticeKinds is the single source of truth for valid notice kinds.
var validNoticeKinds = map[NoticeKind]bool{
	NoticeKindGoal:   true,
	NoticeKindSystem: true,
}

// ParseNoticeKind constructs a NoticeKind from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseNoticeKind(s string) (NoticeKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "notice kind cannot be empty")
	}
	k := NoticeKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid notice kind")
	}
	return k, nil
}

// IsValid checks if the kind is one of the supported enum values.
func (k NoticeKind) IsValid() bool {
	return validNoticeKinds[k]
}

func (k NoticeKind) String() string {
	return string(k)
}

// FamilyRole distinguishes the two sides of a family link when wording the
// link-completion notice.
type FamilyRole string

const (
	FamilyRoleParent FamilyRole = "parent"
	FamilyRoleChild  FamilyRole = "child"
)

// Package domain holds the typed identifiers and closed value sets shared
// across modules. Typed IDs prevent cross-type assignment at compile time;
// construct them via the Parse functions at trust boundaries so the
// non-nil-UUID invariant is enforced.
package domain

import (
	"github.com/google/uuid"

	dErrors "famlink/pkg/domain-errors"
)

// UserID identifies a family member (parent or child). It is the sole
// authorization key for notification reads and mutations.
type UserID uuid.UUID

// ParseUserID constructs a UserID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseUserID(s string) (UserID, error) {
	if s == "" {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	if u == uuid.Nil {
		return UserID{}, dErrors.New(dErrors.CodeInvalidInput, "user id cannot be nil")
	}
	return UserID(u), nil
}

func (id UserID) String() string {
	return uuid.UUID(id).String()
}

// MarshalText encodes the ID in canonical UUID form, so JSON payloads carry
// the string representation rather than a byte array.
func (id UserID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the canonical UUID form.
func (id *UserID) UnmarshalText(data []byte) error {
	u, err := uuid.Parse(string(data))
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	*id = UserID(u)
	return nil
}

// IsNil reports whether the ID is the zero UUID.
func (id UserID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

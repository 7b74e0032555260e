package smm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidData marks data violating the fixed course layout: wrong
	// buffer size, truncated record, unknown enum tag or ordinal, invalid
	// calendar fields
	ErrInvalidData = errors.New("malformed course data")

	// ErrTooLarge marks content exceeding the wire space reserved for it
	// (thumbnail payload, object table)
	ErrTooLarge = errors.New("data exceeds its reserved space")

	// ErrNameTooLong marks a course name longer than MaxNameLength
	ErrNameTooLong = errors.New("course name too long")

	// ErrChecksumMismatch is returned by the Verify*Checksum functions when
	// the stored checksum does not match the content it covers
	ErrChecksumMismatch = errors.New("stored checksum does not match content")

	// ErrMissingMember marks one of the four required bundle members being
	// absent, it is always wrapped in a MemberError naming the member
	ErrMissingMember = errors.New("bundle member not found")
)

// MemberError ties a failure to one of the four required bundle members so
// callers can tell a missing file apart from a broken one and know which
// member is affected
type MemberError struct {
	Member string
	Err    error
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("member %s: %s", e.Member, e.Err)
}

func (e *MemberError) Unwrap() error { return e.Err }

// Package reject defines the user-facing rejection taxonomy. Rejections are
// expected control flow: they carry a human-readable reason and are reported
// directly to the invoking user, unlike internal errors which are logged and
// surfaced as a generic failure.
package reject

import (
	"errors"
	"fmt"
)

// Kind classifies a rejection
type Kind int

const (
	// Validation covers user-fixable input problems (bad template, date, lane shape)
	Validation Kind = iota
	// Eligibility is a gear-score threshold miss
	Eligibility
	// Capacity means the target lane is full (race lost)
	Capacity
	// State means the event is not open / already in the requested state
	State
	// NotFound means the event, lane, or signup is missing
	NotFound
	// Authorization means a non-manager attempted a management action
	Authorization
)

// Rejection is a denial reported verbatim to the user
type Rejection struct {
	Kind    Kind
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

// New builds a rejection with a formatted message
func New(kind Kind, format string, args ...interface{}) *Rejection {
	return &Rejection{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// As extracts a Rejection from an error chain, or returns nil
func As(err error) *Rejection {
	var r *Rejection
	if errors.As(err, &r) {
		return r
	}
	return nil
}

// Is reports whether err is a rejection of the given kind
func Is(err error, kind Kind) bool {
	if r := As(err); r != nil {
		return r.Kind == kind
	}
	return false
}

// ErrInternalInconsistency marks a failed post-write verification. It is
// logged loudly and shown to the user as a generic failure, never swallowed.
var ErrInternalInconsistency = errors.New("post-write verification failed")

package engine

import (
	"errors"
	"fmt"
	"strings"

	"exclusivewire/internal/domain"
)

// ErrAlreadyClaimed is returned when the conditional claim update matched no
// row: another journalist holds the exclusive.
var ErrAlreadyClaimed = errors.New("this announcement has already been claimed")

// ForbiddenError is an authorization refusal with a caller-facing reason.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string { return e.Reason }

// NoMatchingBeatError rejects a claim from a journalist whose beats do not
// intersect the announcement's required tags.
type NoMatchingBeatError struct {
	Required []string
}

func (e NoMatchingBeatError) Error() string {
	return fmt.Sprintf("you do not have a matching beat for this announcement (requires one of: %s)",
		strings.Join(e.Required, ", "))
}

// InvalidTransitionError reports a lifecycle move the state machine forbids.
type InvalidTransitionError struct {
	From domain.AnnouncementStatus
	To   domain.AnnouncementStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition announcement from %s to %s", e.From, e.To)
}

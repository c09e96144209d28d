// Package workflow holds the cross-branch visibility state machine for
// events. All transition legality lives here; callers never compare or set
// statuses directly, which keeps the cross-branch flag and the status in
// lockstep.
package workflow

import "errors"

// Status is the cross-branch review state of an event.
//
//	none -> pending -> approved
//	                -> rejected
type Status string

const (
	StatusNone     Status = "none"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ErrInvalidTransition is returned when a transition is requested from a
// state that does not permit it.
var ErrInvalidTransition = errors.New("invalid cross-branch transition")

// Transition is the outcome of a legal state change. CrossBranch is derived
// from the resulting status, never set independently.
type Transition struct {
	From        Status
	To          Status
	CrossBranch bool
}

// Normalize maps a stored string to a Status, treating anything unknown as
// StatusNone.
func Normalize(raw string) Status {
	switch Status(raw) {
	case StatusNone, StatusPending, StatusApproved, StatusRejected:
		return Status(raw)
	default:
		return StatusNone
	}
}

// CrossBranch reports whether an event in the given status is flagged for
// cross-branch visibility. Only StatusNone means the event never entered the
// workflow; pending and approved events carry the flag, rejected events have
// it cleared.
func CrossBranch(s Status) bool {
	return s == StatusPending || s == StatusApproved
}

// Visible reports whether an event in the given status is visible outside
// its own branch.
func Visible(s Status) bool {
	return s == StatusApproved
}

// Request moves an event into review. Legal only from StatusNone: an event
// that was already requested, approved, or rejected cannot be requested
// again.
func Request(current Status) (Transition, error) {
	if current != StatusNone {
		return Transition{}, ErrInvalidTransition
	}
	return Transition{From: current, To: StatusPending, CrossBranch: true}, nil
}

// Approve grants cross-branch visibility. Legal only from StatusPending.
func Approve(current Status) (Transition, error) {
	if current != StatusPending {
		return Transition{}, ErrInvalidTransition
	}
	return Transition{From: current, To: StatusApproved, CrossBranch: true}, nil
}

// Reject denies cross-branch visibility and clears the flag. Legal only from
// StatusPending.
func Reject(current Status) (Transition, error) {
	if current != StatusPending {
		return Transition{}, ErrInvalidTransition
	}
	return Transition{From: current, To: StatusRejected, CrossBranch: false}, nil
}

package domain

import "strings"

// Status is the persisted order status.
type Status string

// List of persisted statuses
const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

var allowedStatuses = [...]Status{
	StatusPending, StatusAccepted, StatusRejected, StatusCompleted,
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusCompleted},
}

// Normalize lower-cases the status; an empty status is an implicit pending.
func (s Status) Normalize() Status {
	v := Status(strings.ToLower(strings.TrimSpace(string(s))))
	if v == "" {
		return StatusPending
	}
	return v
}

// Valid checks if the Status belongs to the persisted vocabulary
func (s Status) Valid() bool {
	s = s.Normalize()
	for _, v := range allowedStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is a legal persisted transition.
func CanTransition(from, to Status) bool {
	from, to = from.Normalize(), to.Normalize()
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesOf returns the statuses from which to can be reached.
func SourcesOf(to Status) []Status {
	to = to.Normalize()
	var out []Status
	for _, from := range allowedStatuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

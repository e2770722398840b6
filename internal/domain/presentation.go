package domain

// PresentationStatus is the status shown to restaurant staff.
type PresentationStatus string

// List of presentation statuses
const (
	PresentationPending   PresentationStatus = "pending"
	PresentationConfirmed PresentationStatus = "confirmed"
	PresentationReady     PresentationStatus = "ready"
	PresentationCancelled PresentationStatus = "cancelled"
	PresentationCompleted PresentationStatus = "completed"
)

// ToPresentation maps a persisted status onto the presentation vocabulary.
func ToPresentation(s Status) PresentationStatus {
	switch s.Normalize() {
	case StatusAccepted:
		return PresentationConfirmed
	case StatusRejected:
		return PresentationCancelled
	case StatusCompleted:
		return PresentationCompleted
	default:
		return PresentationPending
	}
}

// ToPersisted maps a presentation status back to the persisted vocabulary.
// Ready has no persisted counterpart: a ready order is still accepted in the store.
func ToPersisted(p PresentationStatus) Status {
	switch p {
	case PresentationConfirmed, PresentationReady:
		return StatusAccepted
	case PresentationCancelled:
		return StatusRejected
	case PresentationCompleted:
		return StatusCompleted
	default:
		return StatusPending
	}
}

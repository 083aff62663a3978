package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownReference matches rejections for a user, zone or access
	// point that does not resolve against the reference data.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrZoneMismatch matches rejections where the access point belongs to
	// a different zone than the one stated on the event.
	ErrZoneMismatch = errors.New("access point zone mismatch")

	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidDirection = errors.New("invalid direction")

	// ErrIndexRebuild reports that the incrementally maintained presence
	// index disagrees with a full replay of the stored sequence.
	ErrIndexRebuild = errors.New("presence index rebuild failure")

	ErrLedgerNotEmpty = errors.New("ledger is not empty")
)

type Reason string

const (
	ReasonUnknownReference Reason = "unknown_reference"
	ReasonZoneMismatch     Reason = "zone_mismatch"
	ReasonInvalidTimestamp Reason = "invalid_timestamp"
	ReasonInvalidDirection Reason = "invalid_direction"
)

// RejectionError is returned by Append when an event fails validation.
// Kind and ID name the reference that failed so callers can surface an
// actionable message.
type RejectionError struct {
	Reason Reason
	Kind   string // "user", "zone", "access point", "timestamp", "direction"
	ID     string
	Detail string
}

func (e *RejectionError) Error() string {
	switch e.Reason {
	case ReasonUnknownReference:
		return fmt.Sprintf("unknown %s %q", e.Kind, e.ID)
	case ReasonZoneMismatch:
		return fmt.Sprintf("access point %q %s", e.ID, e.Detail)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("invalid %s: %s", e.Kind, e.Detail)
		}
		return fmt.Sprintf("invalid %s %q", e.Kind, e.ID)
	}
}

func (e *RejectionError) Is(target error) bool {
	switch target {
	case ErrUnknownReference:
		return e.Reason == ReasonUnknownReference
	case ErrZoneMismatch:
		return e.Reason == ReasonZoneMismatch
	case ErrInvalidTimestamp:
		return e.Reason == ReasonInvalidTimestamp
	case ErrInvalidDirection:
		return e.Reason == ReasonInvalidDirection
	}
	return false
}

func unknown(kind, id string) error {
	return &RejectionError{Reason: ReasonUnknownReference, Kind: kind, ID: id}
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// HostAccount carries the account-level trial window granted at signup.
// It is tracked separately from the per-listing trial in the listing
// module; the two can disagree and the engine deliberately keeps both.
type HostAccount struct {
	ID          uuid.UUID
	TrialEndsAt *time.Time
}

// InTrial reports whether the account-level trial window is still open.
func (a HostAccount) InTrial(now time.Time) bool {
	return a.TrialEndsAt != nil && !a.TrialEndsAt.Before(now)
}

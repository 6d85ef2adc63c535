// Package transitions holds the recommendation status machine.
package transitions

import (
	"fmt"
	"time"

	"dealscore/internal/domain"
)

// validTransitions is the full lifecycle table; anything absent is rejected.
var validTransitions = map[domain.Status][]domain.Status{
	domain.StatusDraft:      {domain.StatusSent},
	domain.StatusSent:       {domain.StatusAccepted, domain.StatusDeclined, domain.StatusClosedLost},
	domain.StatusAccepted:   nil,
	domain.StatusDeclined:   {domain.StatusSent, domain.StatusClosedLost},
	domain.StatusClosedLost: nil,
}

// IsValidTransition checks if a status change is legal.
func IsValidTransition(from, to domain.Status) bool {
	for _, target := range validTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Validate returns a *domain.ValidationError naming the rejected transition.
func Validate(from, to domain.Status) error {
	if !IsValidTransition(from, to) {
		return &domain.ValidationError{
			Message: fmt.Sprintf("Cannot transition from %s to %s", from, to),
		}
	}
	return nil
}

// AllowedNext lists the statuses reachable from s.
func AllowedNext(s domain.Status) []domain.Status {
	out := make([]domain.Status, len(validTransitions[s]))
	copy(out, validTransitions[s])
	return out
}

// Apply performs the side effects of an already validated transition:
// closed_lost stamps the terminal fields, every other target clears them.
func Apply(rec *domain.Recommendation, to domain.Status, reason *string, now time.Time) {
	rec.Status = to
	rec.UpdatedAt = now
	switch to {
	case domain.StatusClosedLost:
		at := now
		rec.ClosedLostAt = &at
		rec.ClosedLostReason = reason
	default:
		rec.ClosedLostAt = nil
		rec.ClosedLostReason = nil
	}
	if to == domain.StatusSent && rec.SentAt == nil {
		at := now
		rec.SentAt = &at
	}
}

// Authorizer decides whether actor may change rec's status.
type Authorizer func(actor domain.Actor, rec domain.Recommendation) bool

// Privileged roles may change any recommendation.
var Privileged = map[string]bool{
	"admin":        true,
	"agency_admin": true,
}

// CreatorOrPrivileged allows the recommendation's creator and privileged roles.
func CreatorOrPrivileged(actor domain.Actor, rec domain.Recommendation) bool {
	if Privileged[actor.Role] {
		return true
	}
	return actor.ID != "" && actor.ID == rec.CreatedBy
}

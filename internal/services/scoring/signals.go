package scoring

import (
	"strings"
	"time"

	"dealscore/internal/domain"
)

// Collect folds raw invite and communication rows into calculator input.
// Invites that were never stamped individually inherit the deal's sent time.
func Collect(rec domain.Recommendation, invites []domain.Invite, comms []domain.Communication) domain.Signals {
	var sig domain.Signals
	sig.SentAt = rec.SentAt

	seen := make(map[string]bool, len(invites))
	for _, inv := range invites {
		email := strings.ToLower(strings.TrimSpace(inv.Email))
		if email != "" && !seen[email] {
			seen[email] = true
		}
		sig.SentAt = earliest(sig.SentAt, inv.SentAt)
		sig.EmailOpenedAt = earliest(sig.EmailOpenedAt, inv.EmailOpenedAt)
		sig.ViewedAt = earliest(sig.ViewedAt, inv.ViewedAt)
	}
	sig.InviteeCount = len(seen)

	for _, c := range comms {
		if c.Direction != domain.DirectionInbound {
			continue
		}
		at := c.ContactAt
		if sig.LastInboundAt == nil || at.After(*sig.LastInboundAt) {
			sig.LastInboundAt = &at
		}
	}
	return sig
}

func earliest(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.Before(*b) {
		return a
	}
	return b
}

// Package scoring computes recommendation confidence scores. Everything here
// is pure: callers pass "now" explicitly and nothing touches storage.
package scoring

import (
	"time"

	"github.com/shopspring/decimal"

	"dealscore/internal/domain"
)

var twelve = decimal.NewFromInt(12)

type Calculator struct {
	Policy Policy
}

func New() Calculator { return Calculator{Policy: DefaultPolicy} }

// Compute scores rec against its signals at instant now.
func (c Calculator) Compute(rec domain.Recommendation, sig domain.Signals, now time.Time) domain.ScoreBreakdown {
	p := c.Policy
	b := domain.ScoreBreakdown{
		BaseScore: c.baseScore(rec),
		Penalties: map[string]int{
			domain.PenaltyEmailNotOpened:    0,
			domain.PenaltyProposalNotViewed: 0,
			domain.PenaltySilence:           0,
		},
		Bonuses: map[string]int{domain.BonusMultiInvite: 0},
	}

	if measuresEngagement(rec.Status) {
		if sig.SentAt == nil {
			// Sent but we never learned when: treat as maximally overdue.
			b.Penalties[domain.PenaltyEmailNotOpened] = p.EmailNotOpened.Cap
			b.Penalties[domain.PenaltyProposalNotViewed] = p.ProposalNotViewed.Cap
			b.Penalties[domain.PenaltySilence] = p.Silence.Cap
		} else {
			sent := *sig.SentAt
			if sig.EmailOpenedAt == nil {
				b.Penalties[domain.PenaltyEmailNotOpened] = p.EmailNotOpened.Amount(since(sent, now))
			}
			if sig.ViewedAt == nil {
				b.Penalties[domain.PenaltyProposalNotViewed] = p.ProposalNotViewed.Amount(since(sent, now))
			}
			// Contact from before the send cannot make the prospect look quieter.
			quietSince := sent
			if sig.LastInboundAt != nil && sig.LastInboundAt.After(sent) {
				quietSince = *sig.LastInboundAt
			}
			b.Penalties[domain.PenaltySilence] = p.Silence.Amount(since(quietSince, now))
		}
	}

	if !rec.Status.Terminal() && sig.InviteeCount > 1 {
		b.Bonuses[domain.BonusMultiInvite] = min((sig.InviteeCount-1)*p.BonusPerExtraInvitee, p.MultiInviteCap)
	}

	for _, v := range b.Penalties {
		b.TotalPenalties += v
	}
	for _, v := range b.Bonuses {
		b.TotalBonus += v
	}
	b.ConfidenceScore = clamp(b.BaseScore-b.TotalPenalties+b.TotalBonus, 0, 100)
	b.ConfidencePercent = Percent(b.ConfidenceScore)
	return b
}

// Percent maps a score onto the 0-100 percentage scale.
func Percent(score int) float64 {
	return float64(clamp(score, 0, 100))
}

func (c Calculator) baseScore(rec domain.Recommendation) int {
	p := c.Policy
	switch rec.Status {
	case domain.StatusAccepted:
		return p.AcceptedScore
	case domain.StatusClosedLost:
		return p.ClosedLostScore
	}
	monthly := rec.WeightedMonthly.Add(rec.WeightedOnetime.Div(twelve))
	points := 0
	if monthly.IsPositive() && p.BaseStep.IsPositive() {
		points = int(monthly.Div(p.BaseStep).Floor().IntPart())
	}
	base := clamp(p.BaseFloor+points, p.BaseFloor, p.BaseCeiling)
	if rec.Status == domain.StatusDeclined {
		base += p.DeclinedAdjustment
	}
	return base
}

// measuresEngagement is true once a proposal is out and the deal still open.
func measuresEngagement(s domain.Status) bool {
	return s == domain.StatusSent || s == domain.StatusDeclined
}

func since(t, now time.Time) time.Duration {
	if d := now.Sub(t); d > 0 {
		return d
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

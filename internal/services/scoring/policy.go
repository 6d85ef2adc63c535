package scoring

import (
	"time"

	"github.com/shopspring/decimal"
)

// PenaltyRule grows a deduction by PerDay for each started day past Grace,
// up to Cap.
type PenaltyRule struct {
	Grace  time.Duration
	PerDay int
	Cap    int
}

// Amount returns the deduction for the given elapsed time.
func (r PenaltyRule) Amount(elapsed time.Duration) int {
	overdue := elapsed - r.Grace
	if overdue <= 0 {
		return 0
	}
	days := int(overdue/(24*time.Hour)) + 1
	return min(days*r.PerDay, r.Cap)
}

// Policy holds the fixed scoring constants.
type Policy struct {
	BaseFloor   int
	BaseCeiling int
	// BaseStep is the monthly-equivalent value worth one base point.
	BaseStep decimal.Decimal

	DeclinedAdjustment int
	AcceptedScore      int
	ClosedLostScore    int

	EmailNotOpened    PenaltyRule
	ProposalNotViewed PenaltyRule
	Silence           PenaltyRule

	BonusPerExtraInvitee int
	MultiInviteCap       int
}

// DefaultPolicy is the production scoring policy.
var DefaultPolicy = Policy{
	BaseFloor:   30,
	BaseCeiling: 80,
	BaseStep:    decimal.NewFromInt(100),

	DeclinedAdjustment: -10,
	AcceptedScore:      100,
	ClosedLostScore:    0,

	EmailNotOpened:    PenaltyRule{Grace: 48 * time.Hour, PerDay: 5, Cap: 15},
	ProposalNotViewed: PenaltyRule{Grace: 72 * time.Hour, PerDay: 4, Cap: 12},
	Silence:           PenaltyRule{Grace: 24 * time.Hour, PerDay: 3, Cap: 15},

	BonusPerExtraInvitee: 5,
	MultiInviteCap:       10,
}

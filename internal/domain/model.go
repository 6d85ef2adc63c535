package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Core domain models. Adapters translate rows into these; HTTP shapes live in
// the http adapter so the two can drift independently.

type Status string

const (
	StatusDraft      Status = "draft"
	StatusSent       Status = "sent"
	StatusAccepted   Status = "accepted"
	StatusDeclined   Status = "declined"
	StatusClosedLost Status = "closed_lost"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusSent, StatusAccepted, StatusDeclined, StatusClosedLost}

// Terminal reports whether no further transitions or rescoring apply.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusClosedLost
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", &ValidationError{Message: "unknown status: " + raw}
	}
	return s, nil
}

// Recommendation is a deal proposal tracked from draft to won/lost.
type Recommendation struct {
	ID                string
	CreatedBy         string
	Title             string
	Status            Status
	WeightedMonthly   decimal.Decimal
	WeightedOnetime   decimal.Decimal
	ConfidenceScore   int
	ConfidencePercent float64
	SentAt            *time.Time
	ClosedLostAt      *time.Time
	ClosedLostReason  *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Invite struct {
	ID               string
	RecommendationID string
	Email            string
	SentAt           *time.Time
	EmailOpenedAt    *time.Time
	ViewedAt         *time.Time
	CreatedAt        time.Time
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Communication struct {
	ID               string
	RecommendationID string
	Direction        Direction
	Channel          string // email|sms|call|meeting|other
	ContactAt        time.Time
	Source           string
}

// Channels accepted on logged communications.
var Channels = map[string]bool{
	"email":   true,
	"sms":     true,
	"call":    true,
	"meeting": true,
	"other":   true,
}

// Signals is the folded view of invites and communications the calculator reads.
type Signals struct {
	SentAt        *time.Time
	EmailOpenedAt *time.Time
	ViewedAt      *time.Time
	LastInboundAt *time.Time
	InviteeCount  int
}

// Named breakdown entries.
const (
	PenaltyEmailNotOpened    = "email_not_opened"
	PenaltyProposalNotViewed = "proposal_not_viewed"
	PenaltySilence           = "silence"
	BonusMultiInvite         = "multi_invite_bonus"
)

// ScoreBreakdown is what the calculator produces and what audit records store.
// Penalties and Bonuses are open maps so new signals don't change the schema.
type ScoreBreakdown struct {
	BaseScore         int            `json:"base_score"`
	Penalties         map[string]int `json:"penalty_breakdown"`
	Bonuses           map[string]int `json:"bonus_breakdown"`
	TotalPenalties    int            `json:"total_penalties"`
	TotalBonus        int            `json:"total_bonus"`
	ConfidenceScore   int            `json:"confidence_score"`
	ConfidencePercent float64        `json:"confidence_percent"`
}

// AuditRecord is an immutable scoring snapshot. Breakdown is nil for legacy rows.
type AuditRecord struct {
	ID               string
	RecommendationID string
	ScoredAt         time.Time
	TriggerSource    string
	Status           Status
	ConfidenceScore  int
	WeightedMonthly  decimal.Decimal
	Breakdown        *ScoreBreakdown
}

// ScoreUpdate is the denormalized "current" view written onto the deal row.
type ScoreUpdate struct {
	ConfidenceScore   int
	ConfidencePercent float64
	WeightedMonthly   decimal.Decimal
	WeightedOnetime   decimal.Decimal
}

// Actor identifies who is asking for a status change.
type Actor struct {
	ID   string
	Role string
}

// StatusView is the read-only lifecycle projection handed to clients.
type StatusView struct {
	RecommendationID    string
	Status              Status
	AllowedNextStatuses []Status
	ClosedLostAt        *time.Time
	ClosedLostReason    *string
	ConfidenceScore     int
	ConfidencePercent   float64
}

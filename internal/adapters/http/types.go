package httpadapter

import (
	"time"

	"github.com/shopspring/decimal"

	"dealscore/internal/domain"
	"dealscore/internal/services/audit"
)

// Wire shapes. Kept separate from domain types so the API can stay stable
// while the model changes.

type CreateRecommendationRequest struct {
	Title           string          `json:"title"`
	CreatedBy       string          `json:"created_by"`
	WeightedMonthly decimal.Decimal `json:"weighted_monthly"`
	WeightedOnetime decimal.Decimal `json:"weighted_onetime"`
}

type ChangeStatusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

type AddInviteRequest struct {
	Email string `json:"email"`
}

type LogCommunicationRequest struct {
	Direction string     `json:"direction"`
	Channel   string     `json:"channel"`
	ContactAt *time.Time `json:"contact_at,omitempty"`
	Source    string     `json:"source"`
}

type RecommendationResponse struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	CreatedBy         string          `json:"created_by"`
	Status            domain.Status   `json:"status"`
	WeightedMonthly   decimal.Decimal `json:"weighted_monthly"`
	WeightedOnetime   decimal.Decimal `json:"weighted_onetime"`
	ConfidenceScore   int             `json:"confidence_score"`
	ConfidencePercent float64         `json:"confidence_percent"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
	ClosedLostAt      *time.Time      `json:"closed_lost_at,omitempty"`
	ClosedLostReason  *string         `json:"closed_lost_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type StatusResponse struct {
	RecommendationID    string          `json:"recommendation_id"`
	Status              domain.Status   `json:"status"`
	AllowedNextStatuses []domain.Status `json:"allowed_next_statuses"`
	ClosedLostAt        *time.Time      `json:"closed_lost_at,omitempty"`
	ClosedLostReason    *string         `json:"closed_lost_reason,omitempty"`
	ConfidenceScore     int             `json:"confidence_score"`
	ConfidencePercent   float64         `json:"confidence_percent"`
}

type InviteResponse struct {
	ID               string     `json:"id"`
	RecommendationID string     `json:"recommendation_id"`
	Email            string     `json:"email"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type CommunicationResponse struct {
	ID               string           `json:"id"`
	RecommendationID string           `json:"recommendation_id"`
	Direction        domain.Direction `json:"direction"`
	Channel          string           `json:"channel"`
	ContactAt        time.Time        `json:"contact_at"`
	Source           string           `json:"source,omitempty"`
}

type AuditEntryResponse struct {
	ID              string                 `json:"id"`
	ScoredAt        time.Time              `json:"scored_at"`
	TriggerSource   string                 `json:"trigger_source"`
	Status          domain.Status          `json:"status"`
	ConfidenceScore int                    `json:"confidence_score"`
	WeightedMonthly decimal.Decimal        `json:"weighted_monthly"`
	Breakdown       *domain.ScoreBreakdown `json:"breakdown"`
	Delta           *audit.Delta           `json:"delta"`
}

type RecalculateAccepted struct {
	RecommendationID string `json:"recommendation_id"`
	Queued           bool   `json:"queued"`
}

type APIError struct {
	Error string `json:"error"`
}

func toRecommendation(r domain.Recommendation) RecommendationResponse {
	return RecommendationResponse{
		ID:                r.ID,
		Title:             r.Title,
		CreatedBy:         r.CreatedBy,
		Status:            r.Status,
		WeightedMonthly:   r.WeightedMonthly,
		WeightedOnetime:   r.WeightedOnetime,
		ConfidenceScore:   r.ConfidenceScore,
		ConfidencePercent: r.ConfidencePercent,
		SentAt:            r.SentAt,
		ClosedLostAt:      r.ClosedLostAt,
		ClosedLostReason:  r.ClosedLostReason,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toStatus(v domain.StatusView) StatusResponse {
	next := v.AllowedNextStatuses
	if next == nil {
		next = []domain.Status{}
	}
	return StatusResponse{
		RecommendationID:    v.RecommendationID,
		Status:              v.Status,
		AllowedNextStatuses: next,
		ClosedLostAt:        v.ClosedLostAt,
		ClosedLostReason:    v.ClosedLostReason,
		ConfidenceScore:     v.ConfidenceScore,
		ConfidencePercent:   v.ConfidencePercent,
	}
}

func toTrail(entries []audit.TrailEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:              e.Record.ID,
			ScoredAt:        e.Record.ScoredAt,
			TriggerSource:   e.Record.TriggerSource,
			Status:          e.Record.Status,
			ConfidenceScore: e.Record.ConfidenceScore,
			WeightedMonthly: e.Record.WeightedMonthly,
			Breakdown:       e.Record.Breakdown,
			Delta:           e.Delta,
		})
	}
	return out
}

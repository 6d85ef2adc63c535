package kafka

import "time"

// Engagement event types published by the notification subsystem.
const (
	EventEmailOpened         = "email_opened"
	EventProposalViewed      = "proposal_viewed"
	EventCommunicationLogged = "communication_logged"
)

// EngagementEvent is one message on the engagement topic. Invite events
// carry InviteID; communication events carry RecommendationID and the
// contact details.
type EngagementEvent struct {
	EventType        string    `json:"event_type"`
	InviteID         string    `json:"invite_id,omitempty"`
	RecommendationID string    `json:"recommendation_id,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
	Direction        string    `json:"direction,omitempty"`
	Channel          string    `json:"channel,omitempty"`
	Source           string    `json:"source,omitempty"`
}

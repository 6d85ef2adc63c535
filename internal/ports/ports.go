package ports

import (
	"context"
	"time"

	"dealscore/internal/domain"
	"dealscore/internal/services/audit"
)

// Recommendations drives the deal lifecycle and its read projections.
type Recommendations interface {
	Create(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error)
	AddInvite(ctx context.Context, recommendationID, email string) (domain.Invite, error)
	ChangeStatus(ctx context.Context, actor domain.Actor, id string, to domain.Status, reason *string) (domain.Recommendation, error)
	Status(ctx context.Context, id string) (domain.StatusView, error)
	AuditTrail(ctx context.Context, id string) ([]audit.TrailEntry, error)
}

// Engagement records prospect activity reported by the notification side.
type Engagement interface {
	EmailOpened(ctx context.Context, inviteID string, at time.Time) error
	ProposalViewed(ctx context.Context, inviteID string, at time.Time) error
	LogCommunication(ctx context.Context, comm *domain.Communication) error
}

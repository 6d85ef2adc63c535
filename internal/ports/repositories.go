package ports

import (
	"context"
	"time"

	"dealscore/internal/domain"
)

// RecommendationRepository stores the deal rows themselves.
type RecommendationRepository interface {
	CreateRecommendation(ctx context.Context, rec *domain.Recommendation) error
	// GetRecommendation returns domain.ErrNotFound for unknown ids.
	GetRecommendation(ctx context.Context, id string) (domain.Recommendation, error)
	// UpdateStatus persists status, sent/closed-lost fields. It only applies
	// while the stored status still equals from, else domain.ErrConflict.
	UpdateStatus(ctx context.Context, rec domain.Recommendation, from domain.Status) error
}

// SignalRepository reads and records the engagement signals scoring depends on.
type SignalRepository interface {
	AddInvite(ctx context.Context, inv *domain.Invite) error
	ListInvites(ctx context.Context, recommendationID string) ([]domain.Invite, error)
	// MarkEmailOpened stamps the first open only and returns the owning recommendation id.
	MarkEmailOpened(ctx context.Context, inviteID string, at time.Time) (recommendationID string, err error)
	MarkProposalViewed(ctx context.Context, inviteID string, at time.Time) (recommendationID string, err error)
	LogCommunication(ctx context.Context, comm *domain.Communication) error
	// ListCommunications is ordered by contact_at ascending.
	ListCommunications(ctx context.Context, recommendationID string) ([]domain.Communication, error)
}

// AuditRepository is the append-only score history.
type AuditRepository interface {
	LatestAudit(ctx context.Context, recommendationID string) (rec domain.AuditRecord, found bool, err error)
	// ListAudits is ordered by scored_at ascending.
	ListAudits(ctx context.Context, recommendationID string) ([]domain.AuditRecord, error)
	// RecordScore appends the audit record and updates the deal's current
	// score in a single transaction.
	RecordScore(ctx context.Context, rec domain.AuditRecord, update domain.ScoreUpdate) error
}

// SignalStore is everything the core needs from persistence.
type SignalStore interface {
	RecommendationRepository
	SignalRepository
	AuditRepository
}

// Package recommendations is the deal lifecycle use case: creation, invites,
// status changes and the read projections built on top of them.
package recommendations

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"dealscore/internal/domain"
	"dealscore/internal/ports"
	"dealscore/internal/services/audit"
	"dealscore/internal/services/transitions"
)

// Trigger sources raised by this service.
const (
	SourceCreated       = "created"
	SourceInviteAdded   = "invite_added"
	SourceStatusChanged = "status_changed"
)

type Service struct {
	store     ports.SignalStore
	trigger   ports.Trigger
	authorize transitions.Authorizer
	now       func() time.Time
}

type Option func(*Service)

func WithAuthorizer(a transitions.Authorizer) Option {
	return func(s *Service) { s.authorize = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store ports.SignalStore, trigger ports.Trigger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		trigger:   trigger,
		authorize: transitions.CreatorOrPrivileged,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new draft and schedules its first score.
func (s *Service) Create(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	rec.Title = strings.TrimSpace(rec.Title)
	if rec.CreatedBy == "" {
		return rec, &domain.ValidationError{Message: "created_by is required"}
	}
	if rec.WeightedMonthly.IsNegative() || rec.WeightedOnetime.IsNegative() {
		return rec, &domain.ValidationError{Message: "weighted values must not be negative"}
	}
	// Stored with cent precision; answer with what every later read returns.
	rec.WeightedMonthly = rec.WeightedMonthly.Round(2)
	rec.WeightedOnetime = rec.WeightedOnetime.Round(2)
	rec.ID = ""
	rec.Status = domain.StatusDraft
	rec.SentAt, rec.ClosedLostAt, rec.ClosedLostReason = nil, nil, nil
	rec.ConfidenceScore, rec.ConfidencePercent = 0, 0
	rec.CreatedAt = s.now().UTC()
	if err := s.store.CreateRecommendation(ctx, &rec); err != nil {
		return rec, err
	}
	s.trigger.Trigger(rec.ID, SourceCreated)
	return rec, nil
}

// AddInvite attaches an invitee. Invites on a sent deal count as sent now.
func (s *Service) AddInvite(ctx context.Context, recommendationID, email string) (domain.Invite, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return domain.Invite{}, &domain.ValidationError{Message: "invalid email: " + email}
	}
	rec, err := s.store.GetRecommendation(ctx, recommendationID)
	if err != nil {
		return domain.Invite{}, err
	}
	if rec.Status.Terminal() {
		return domain.Invite{}, &domain.ValidationError{Message: "cannot invite to a " + string(rec.Status) + " recommendation"}
	}
	now := s.now().UTC()
	inv := domain.Invite{RecommendationID: rec.ID, Email: addr.Address, CreatedAt: now}
	if rec.Status == domain.StatusSent {
		inv.SentAt = &now
	}
	if err := s.store.AddInvite(ctx, &inv); err != nil {
		return domain.Invite{}, err
	}
	s.trigger.Trigger(rec.ID, SourceInviteAdded)
	return inv, nil
}

// ChangeStatus moves a deal through its lifecycle. The rescoring it triggers
// runs in the background and cannot fail the change.
func (s *Service) ChangeStatus(ctx context.Context, actor domain.Actor, id string, to domain.Status, reason *string) (domain.Recommendation, error) {
	rec, err := s.store.GetRecommendation(ctx, id)
	if err != nil {
		return domain.Recommendation{}, err
	}
	if !s.authorize(actor, rec) {
		return rec, domain.ErrForbidden
	}
	if err := transitions.Validate(rec.Status, to); err != nil {
		return rec, err
	}
	from := rec.Status
	next := rec
	transitions.Apply(&next, to, reason, s.now().UTC())
	if err := s.store.UpdateStatus(ctx, next, from); err != nil {
		return rec, err
	}
	s.trigger.Trigger(id, SourceStatusChanged)
	return next, nil
}

func (s *Service) Status(ctx context.Context, id string) (domain.StatusView, error) {
	rec, err := s.store.GetRecommendation(ctx, id)
	if err != nil {
		return domain.StatusView{}, err
	}
	return domain.StatusView{
		RecommendationID:    rec.ID,
		Status:              rec.Status,
		AllowedNextStatuses: transitions.AllowedNext(rec.Status),
		ClosedLostAt:        rec.ClosedLostAt,
		ClosedLostReason:    rec.ClosedLostReason,
		ConfidenceScore:     rec.ConfidenceScore,
		ConfidencePercent:   rec.ConfidencePercent,
	}, nil
}

// AuditTrail returns every score snapshot with its delta from the one before.
func (s *Service) AuditTrail(ctx context.Context, id string) ([]audit.TrailEntry, error) {
	if _, err := s.store.GetRecommendation(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.store.ListAudits(ctx, id)
	if err != nil {
		return nil, err
	}
	return audit.Trail(records), nil
}

var _ ports.Recommendations = (*Service)(nil)

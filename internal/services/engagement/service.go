// Package engagement ingests prospect activity and schedules rescoring.
package engagement

import (
	"context"
	"strings"
	"time"

	"dealscore/internal/domain"
	"dealscore/internal/ports"
)

const (
	SourceEmailOpened         = "email_opened"
	SourceProposalViewed      = "proposal_viewed"
	SourceCommunicationLogged = "communication_logged"
)

type Service struct {
	signals ports.SignalStore
	trigger ports.Trigger
	now     func() time.Time
}

type Option func(*Service)

// WithClock sets the time used for events reported without one.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(signals ports.SignalStore, trigger ports.Trigger, opts ...Option) *Service {
	s := &Service{signals: signals, trigger: trigger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EmailOpened records a tracking-pixel hit. Only the first open is kept.
func (s *Service) EmailOpened(ctx context.Context, inviteID string, at time.Time) error {
	recID, err := s.signals.MarkEmailOpened(ctx, inviteID, s.stamp(at))
	if err != nil {
		return err
	}
	s.trigger.Trigger(recID, SourceEmailOpened)
	return nil
}

func (s *Service) ProposalViewed(ctx context.Context, inviteID string, at time.Time) error {
	recID, err := s.signals.MarkProposalViewed(ctx, inviteID, s.stamp(at))
	if err != nil {
		return err
	}
	s.trigger.Trigger(recID, SourceProposalViewed)
	return nil
}

// LogCommunication stores a contact with the prospect. Inbound contacts reset
// the silence penalty on the next score.
func (s *Service) LogCommunication(ctx context.Context, comm *domain.Communication) error {
	comm.Channel = strings.ToLower(strings.TrimSpace(comm.Channel))
	switch comm.Direction {
	case domain.DirectionInbound, domain.DirectionOutbound:
	default:
		return &domain.ValidationError{Message: "unknown direction: " + string(comm.Direction)}
	}
	if !domain.Channels[comm.Channel] {
		return &domain.ValidationError{Message: "unknown channel: " + comm.Channel}
	}
	if _, err := s.signals.GetRecommendation(ctx, comm.RecommendationID); err != nil {
		return err
	}
	comm.ContactAt = s.stamp(comm.ContactAt)
	if err := s.signals.LogCommunication(ctx, comm); err != nil {
		return err
	}
	s.trigger.Trigger(comm.RecommendationID, SourceCommunicationLogged)
	return nil
}

func (s *Service) stamp(at time.Time) time.Time {
	if at.IsZero() {
		return s.now().UTC()
	}
	return at.UTC()
}

var _ ports.Engagement = (*Service)(nil)

// Package recalc recomputes a recommendation's confidence score and appends
// the result to its audit trail.
package recalc

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dealscore/internal/domain"
	"dealscore/internal/ports"
	"dealscore/internal/services/scoring"
)

// Resolution is the smallest step between two audit timestamps; it matches
// the microsecond precision Postgres keeps.
const Resolution = time.Microsecond

const defaultStoreTimeout = 5 * time.Second

type Orchestrator struct {
	store        ports.SignalStore
	calc         scoring.Calculator
	locks        *lockArena
	now          func() time.Time
	storeTimeout time.Duration
}

type Option func(*Orchestrator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithStoreTimeout bounds the signal store round trips of one recalculation.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.storeTimeout = d
		}
	}
}

func WithCalculator(c scoring.Calculator) Option {
	return func(o *Orchestrator) { o.calc = c }
}

func New(store ports.SignalStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		calc:         scoring.New(),
		locks:        newLockArena(),
		now:          time.Now,
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Recalculate rescores one recommendation. Calls for the same id are
// serialized; different ids proceed in parallel. Store failures come back
// as *domain.RecalculationError.
func (o *Orchestrator) Recalculate(ctx context.Context, id, triggerSource string) error {
	unlock := o.locks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, o.storeTimeout)
	defer cancel()

	fail := func(err error) error {
		return &domain.RecalculationError{RecommendationID: id, TriggerSource: triggerSource, Err: err}
	}

	rec, err := o.store.GetRecommendation(ctx, id)
	if err != nil {
		return fail(err)
	}

	var (
		invites []domain.Invite
		comms   []domain.Communication
		last    domain.AuditRecord
		hasLast bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		invites, err = o.store.ListInvites(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		comms, err = o.store.ListCommunications(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		last, hasLast, err = o.store.LatestAudit(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	// A terminal deal gets exactly one close-out record, then stays frozen.
	if rec.Status.Terminal() && hasLast && last.Status == rec.Status {
		return nil
	}

	now := o.now().UTC().Truncate(Resolution)
	if hasLast && !now.After(last.ScoredAt) {
		now = last.ScoredAt.Add(Resolution)
	}

	b := o.calc.Compute(rec, scoring.Collect(rec, invites, comms), now)
	entry := domain.AuditRecord{
		ID:               uuid.NewString(),
		RecommendationID: id,
		ScoredAt:         now,
		TriggerSource:    triggerSource,
		Status:           rec.Status,
		ConfidenceScore:  b.ConfidenceScore,
		WeightedMonthly:  rec.WeightedMonthly,
		Breakdown:        &b,
	}
	update := domain.ScoreUpdate{
		ConfidenceScore:   b.ConfidenceScore,
		ConfidencePercent: b.ConfidencePercent,
		WeightedMonthly:   rec.WeightedMonthly,
		WeightedOnetime:   rec.WeightedOnetime,
	}
	if err := o.store.RecordScore(ctx, entry, update); err != nil {
		return fail(err)
	}
	log.Printf("recalc: %s scored %d (trigger=%s, base=%d, penalties=%d, bonus=%d)",
		id, b.ConfidenceScore, triggerSource, b.BaseScore, b.TotalPenalties, b.TotalBonus)
	return nil
}

var _ ports.Recalculator = (*Orchestrator)(nil)

package recommendations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscore/internal/domain"
	"dealscore/internal/ports"
	"dealscore/internal/services/engagement"
	"dealscore/internal/services/recalc"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// inlineTrigger recalculates on the caller's goroutine so scenarios can
// assert on the audit trail right after each step.
type inlineTrigger struct {
	t      *testing.T
	recalc ports.Recalculator
}

func (i inlineTrigger) Trigger(id, source string) {
	require.NoError(i.t, i.recalc.Recalculate(context.Background(), id, source))
}

type harness struct {
	clock  *fakeClock
	store  ports.SignalStore
	recs   *Service
	engage *engagement.Service
}

func newHarness(t *testing.T) *harness {
	clock := &fakeClock{now: t0}
	store := openStore(t)
	trig := inlineTrigger{t: t, recalc: recalc.New(store, recalc.WithClock(clock.Now))}
	return &harness{
		clock:  clock,
		store:  store,
		recs:   New(store, trig, WithClock(clock.Now)),
		engage: engagement.New(store, trig, engagement.WithClock(clock.Now)),
	}
}

func (h *harness) deal(t *testing.T, monthly int64) domain.Recommendation {
	t.Helper()
	rec, err := h.recs.Create(context.Background(), domain.Recommendation{CreatedBy: "owner", WeightedMonthly: decimal.NewFromInt(monthly)})
	require.NoError(t, err)
	return rec
}

func (h *harness) trail(t *testing.T, id string) []domain.AuditRecord {
	t.Helper()
	records, err := h.store.ListAudits(context.Background(), id)
	require.NoError(t, err)
	return records
}

func TestScenario_NewDraftScoresBase(t *testing.T) {
	h := newHarness(t)
	rec := h.deal(t, 1000)

	records := h.trail(t, rec.ID)
	require.Len(t, records, 1)
	assert.Equal(t, SourceCreated, records[0].TriggerSource)
	assert.Equal(t, 40, records[0].Breakdown.BaseScore)
	assert.Equal(t, 40, records[0].ConfidenceScore)

	view, err := h.recs.Status(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, view.ConfidenceScore)
	assert.Equal(t, 40.0, view.ConfidencePercent)
}

func TestScenario_SilenceThenInboundReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := h.deal(t, 4000)

	_, err := h.recs.ChangeStatus(ctx, owner, rec.ID, domain.StatusSent, nil)
	require.NoError(t, err)
	afterSend := h.trail(t, rec.ID)[1]
	assert.Equal(t, SourceStatusChanged, afterSend.TriggerSource)

	h.clock.Advance(6 * 24 * time.Hour)
	h.recs.trigger.Trigger(rec.ID, "scheduled")
	quiet := h.trail(t, rec.ID)[2]
	assert.Equal(t, 15, quiet.Breakdown.Penalties[domain.PenaltyEmailNotOpened])
	assert.Equal(t, 15, quiet.Breakdown.Penalties[domain.PenaltySilence])
	assert.Less(t, quiet.ConfidenceScore, afterSend.ConfidenceScore)

	h.clock.Advance(time.Hour)
	require.NoError(t, h.engage.LogCommunication(ctx, &domain.Communication{
		RecommendationID: rec.ID,
		Direction:        domain.DirectionInbound,
		Channel:          "sms",
		ContactAt:        h.clock.Now(),
	}))

	trail, err := h.recs.AuditTrail(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, trail, 4)
	last := trail[3]
	assert.Equal(t, engagement.SourceCommunicationLogged, last.Record.TriggerSource)
	assert.Equal(t, 0, last.Record.Breakdown.Penalties[domain.PenaltySilence])
	require.NotNil(t, last.Delta)
	assert.Positive(t, last.Delta.ScoreDelta)
	assert.Nil(t, trail[0].Delta)

	for i := 1; i < len(trail); i++ {
		assert.True(t, trail[i-1].Record.ScoredAt.Before(trail[i].Record.ScoredAt))
	}
}

func TestScenario_BackdatedInboundNeverRaisesSilence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := h.deal(t, 4000)

	sent, err := h.recs.ChangeStatus(ctx, owner, rec.ID, domain.StatusSent, nil)
	require.NoError(t, err)

	h.clock.Advance(48 * time.Hour)
	h.recs.trigger.Trigger(rec.ID, "scheduled")
	quiet := h.trail(t, rec.ID)[2]
	require.Equal(t, 6, quiet.Breakdown.Penalties[domain.PenaltySilence])

	require.NoError(t, h.engage.LogCommunication(ctx, &domain.Communication{
		RecommendationID: rec.ID,
		Direction:        domain.DirectionInbound,
		Channel:          "email",
		ContactAt:        sent.SentAt.Add(-72 * time.Hour),
	}))

	records := h.trail(t, rec.ID)
	require.Len(t, records, 4)
	last := records[3]
	assert.Equal(t, engagement.SourceCommunicationLogged, last.TriggerSource)
	assert.LessOrEqual(t, last.Breakdown.Penalties[domain.PenaltySilence], quiet.Breakdown.Penalties[domain.PenaltySilence])
	assert.GreaterOrEqual(t, last.ConfidenceScore, quiet.ConfidenceScore)
}

func TestScenario_OpenAndViewClearPenalties(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := h.deal(t, 1000)

	inv, err := h.recs.AddInvite(ctx, rec.ID, "buyer@client.io")
	require.NoError(t, err)
	_, err = h.recs.ChangeStatus(ctx, owner, rec.ID, domain.StatusSent, nil)
	require.NoError(t, err)

	h.clock.Advance(4 * 24 * time.Hour)
	require.NoError(t, h.engage.EmailOpened(ctx, inv.ID, h.clock.Now()))
	opened := h.trail(t, rec.ID)
	last := opened[len(opened)-1]
	assert.Equal(t, engagement.SourceEmailOpened, last.TriggerSource)
	assert.Equal(t, 0, last.Breakdown.Penalties[domain.PenaltyEmailNotOpened])
	assert.Positive(t, last.Breakdown.Penalties[domain.PenaltyProposalNotViewed])

	require.NoError(t, h.engage.ProposalViewed(ctx, inv.ID, time.Time{}))
	viewed := h.trail(t, rec.ID)
	assert.Equal(t, 0, viewed[len(viewed)-1].Breakdown.Penalties[domain.PenaltyProposalNotViewed])

	assert.ErrorIs(t, h.engage.EmailOpened(ctx, "missing-invite", h.clock.Now()), domain.ErrNotFound)
}

func TestScenario_MultipleInviteesScoreHigher(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	single := h.deal(t, 2000)
	multi := h.deal(t, 2000)

	_, err := h.recs.AddInvite(ctx, single.ID, "a@client.io")
	require.NoError(t, err)
	for _, email := range []string{"a@client.io", "b@client.io", "C@client.io"} {
		_, err := h.recs.AddInvite(ctx, multi.ID, email)
		require.NoError(t, err)
	}

	s, err := h.recs.Status(ctx, single.ID)
	require.NoError(t, err)
	m, err := h.recs.Status(ctx, multi.ID)
	require.NoError(t, err)
	assert.Greater(t, m.ConfidenceScore, s.ConfidenceScore)
}

func TestScenario_ClosedLostFreezesTrail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := h.deal(t, 1000)
	reason := "budget cut"

	_, err := h.recs.ChangeStatus(ctx, owner, rec.ID, domain.StatusSent, nil)
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	_, err = h.recs.ChangeStatus(ctx, owner, rec.ID, domain.StatusClosedLost, &reason)
	require.NoError(t, err)

	view, err := h.recs.Status(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, view.ClosedLostAt)
	assert.Equal(t, "budget cut", *view.ClosedLostReason)
	closeOut := h.trail(t, rec.ID)
	require.Len(t, closeOut, 3)
	assert.Equal(t, domain.StatusClosedLost, closeOut[2].Status)

	h.clock.Advance(10 * 24 * time.Hour)
	h.recs.trigger.Trigger(rec.ID, "scheduled")
	require.NoError(t, h.engage.LogCommunication(ctx, &domain.Communication{
		RecommendationID: rec.ID, Direction: domain.DirectionInbound, Channel: "email",
	}))

	assert.Len(t, h.trail(t, rec.ID), 3)
	after, err := h.recs.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ConfidenceScore, after.ConfidenceScore)
}

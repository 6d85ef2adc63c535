package recommendations

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscore/internal/adapters/sqlite"
	"dealscore/internal/domain"
)

var t0 = time.Date(2026, 4, 6, 10, 0, 0, 0, time.UTC)

type triggerCall struct{ id, source string }

type recordingTrigger struct {
	mu    sync.Mutex
	calls []triggerCall
}

func (r *recordingTrigger) Trigger(id, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, triggerCall{id, source})
}

func (r *recordingTrigger) sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.source)
	}
	return out
}

func openStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "recs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newService(t *testing.T) (*Service, *recordingTrigger) {
	trig := &recordingTrigger{}
	svc := New(openStore(t), trig, WithClock(func() time.Time { return t0 }))
	return svc, trig
}

func createDeal(t *testing.T, svc *Service) domain.Recommendation {
	t.Helper()
	rec, err := svc.Create(context.Background(), domain.Recommendation{
		CreatedBy:       "owner",
		Title:           "Website rebuild",
		WeightedMonthly: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	return rec
}

var owner = domain.Actor{ID: "owner"}

func TestCreate(t *testing.T) {
	svc, trig := newService(t)

	rec := createDeal(t, svc)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, domain.StatusDraft, rec.Status)
	assert.Equal(t, []string{SourceCreated}, trig.sources())

	_, err := svc.Create(context.Background(), domain.Recommendation{Title: "no owner"})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Create(context.Background(), domain.Recommendation{CreatedBy: "x", WeightedMonthly: decimal.NewFromInt(-1)})
	assert.ErrorAs(t, err, &verr)
}

func TestCreate_IgnoresCallerLifecycleFields(t *testing.T) {
	svc, _ := newService(t)
	reason := "nope"

	rec, err := svc.Create(context.Background(), domain.Recommendation{
		CreatedBy:        "owner",
		Status:           domain.StatusAccepted,
		ClosedLostReason: &reason,
		ConfidenceScore:  99,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, rec.Status)
	assert.Nil(t, rec.ClosedLostReason)
	assert.Equal(t, 0, rec.ConfidenceScore)
}

func TestCreate_RoundsWeightedValuesToCents(t *testing.T) {
	svc, _ := newService(t)

	rec, err := svc.Create(context.Background(), domain.Recommendation{
		CreatedBy:       "owner",
		WeightedMonthly: decimal.RequireFromString("1234.567"),
		WeightedOnetime: decimal.RequireFromString("99.994"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1234.57", rec.WeightedMonthly.String())
	assert.Equal(t, "99.99", rec.WeightedOnetime.String())

	stored, err := svc.store.GetRecommendation(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.WeightedMonthly.Equal(rec.WeightedMonthly))
	assert.True(t, stored.WeightedOnetime.Equal(rec.WeightedOnetime))
}

func TestAddInvite(t *testing.T) {
	svc, trig := newService(t)
	ctx := context.Background()
	rec := createDeal(t, svc)

	inv, err := svc.AddInvite(ctx, rec.ID, " Buyer <buyer@client.io> ")
	require.NoError(t, err)
	assert.Equal(t, "buyer@client.io", inv.Email)
	assert.Nil(t, inv.SentAt, "draft invites are not sent yet")
	assert.Equal(t, []string{SourceCreated, SourceInviteAdded}, trig.sources())

	_, err = svc.AddInvite(ctx, rec.ID, "not an email")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.AddInvite(ctx, "missing", "a@b.io")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.ChangeStatus(ctx, owner, rec.ID, domain.StatusSent, nil)
	require.NoError(t, err)
	inv, err = svc.AddInvite(ctx, rec.ID, "cfo@client.io")
	require.NoError(t, err)
	require.NotNil(t, inv.SentAt)
	assert.True(t, inv.SentAt.Equal(t0))
}

func TestChangeStatus_SendStampsSentAt(t *testing.T) {
	svc, trig := newService(t)
	rec := createDeal(t, svc)

	got, err := svc.ChangeStatus(context.Background(), owner, rec.ID, domain.StatusSent, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.True(t, got.SentAt.Equal(t0))
	assert.Equal(t, []string{SourceCreated, SourceStatusChanged}, trig.sources())
}

func TestChangeStatus_RejectsDisallowedTransition(t *testing.T) {
	svc, trig := newService(t)
	ctx := context.Background()
	rec := createDeal(t, svc)
	_, err := svc.ChangeStatus(ctx, owner, rec.ID, domain.StatusSent, nil)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, owner, rec.ID, domain.StatusDraft, nil)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Cannot transition from sent to draft", verr.Message)

	view, err := svc.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, view.Status)
	assert.Equal(t, []string{SourceCreated, SourceStatusChanged}, trig.sources(), "rejected changes trigger nothing")
}

func TestChangeStatus_Authorization(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	rec := createDeal(t, svc)

	_, err := svc.ChangeStatus(ctx, domain.Actor{ID: "intruder", Role: "member"}, rec.ID, domain.StatusSent, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.ChangeStatus(ctx, domain.Actor{ID: "someone", Role: "agency_admin"}, rec.ID, domain.StatusSent, nil)
	assert.NoError(t, err)
}

func TestChangeStatus_CustomAuthorizer(t *testing.T) {
	trig := &recordingTrigger{}
	svc := New(openStore(t), trig, WithAuthorizer(func(domain.Actor, domain.Recommendation) bool { return false }))
	rec := createDeal(t, svc)

	_, err := svc.ChangeStatus(context.Background(), owner, rec.ID, domain.StatusSent, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestChangeStatus_UnknownDeal(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.ChangeStatus(context.Background(), owner, "missing", domain.StatusSent, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChangeStatus_ResendKeepsFirstSentAt(t *testing.T) {
	now := t0
	svc := New(openStore(t), &recordingTrigger{}, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	rec := createDeal(t, svc)

	first, err := svc.ChangeStatus(ctx, owner, rec.ID, domain.StatusSent, nil)
	require.NoError(t, err)
	now = now.Add(72 * time.Hour)
	_, err = svc.ChangeStatus(ctx, owner, rec.ID, domain.StatusDeclined, nil)
	require.NoError(t, err)
	now = now.Add(24 * time.Hour)
	resent, err := svc.ChangeStatus(ctx, owner, rec.ID, domain.StatusSent, nil)
	require.NoError(t, err)

	require.NotNil(t, resent.SentAt)
	assert.True(t, resent.SentAt.Equal(*first.SentAt))
	stored, err := svc.store.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.SentAt.Equal(t0))
}

func TestChangeStatus_TerminalFieldsFollowStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	rec := createDeal(t, svc)
	reason := "went quiet"

	for _, step := range []domain.Status{domain.StatusSent, domain.StatusDeclined, domain.StatusSent, domain.StatusDeclined, domain.StatusClosedLost} {
		var r *string
		if step == domain.StatusClosedLost {
			r = &reason
		}
		_, err := svc.ChangeStatus(ctx, owner, rec.ID, step, r)
		require.NoError(t, err, "to %s", step)

		view, err := svc.Status(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, step == domain.StatusClosedLost, view.ClosedLostAt != nil, "after %s", step)
	}

	view, err := svc.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "went quiet", *view.ClosedLostReason)
	assert.Empty(t, view.AllowedNextStatuses)
}

func TestStatus_AllowedNext(t *testing.T) {
	svc, _ := newService(t)
	rec := createDeal(t, svc)

	view, err := svc.Status(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, view.RecommendationID)
	assert.Equal(t, []domain.Status{domain.StatusSent}, view.AllowedNextStatuses)

	_, err = svc.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAuditTrail_UnknownDeal(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.AuditTrail(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

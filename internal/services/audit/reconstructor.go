// Package audit rebuilds human-readable score history from stored audit records.
package audit

import (
	"log"
	"sort"

	"github.com/shopspring/decimal"

	"dealscore/internal/domain"
)

const (
	WarnMissingBreakdown = "legacy record missing breakdown"
	WarnNonMonotonic     = "non-monotonic scored_at"
)

// FieldChange is one leaf of the breakdown that moved between two records.
type FieldChange struct {
	Field string `json:"field"`
	From  int    `json:"from"`
	To    int    `json:"to"`
	Delta int    `json:"delta"`
}

// Delta describes what changed from the previous record to RecordID.
type Delta struct {
	RecordID         string          `json:"record_id"`
	ScoreDelta       int             `json:"score_delta"`
	WeightedMRRDelta decimal.Decimal `json:"weighted_mrr_delta"`
	Changes          []FieldChange   `json:"field_changes"`
	Warnings         []string        `json:"warnings,omitempty"`
}

// TrailEntry pairs a record with its delta; Delta is nil for the first record.
type TrailEntry struct {
	Record domain.AuditRecord
	Delta  *Delta
}

// Diff returns one Delta per consecutive pair, so len(out) == len(records)-1.
// Records must already be ordered by scored_at.
func Diff(records []domain.AuditRecord) []Delta {
	if len(records) < 2 {
		return nil
	}
	out := make([]Delta, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		out = append(out, Between(records[i-1], records[i]))
	}
	return out
}

// Trail composes records with their deltas.
func Trail(records []domain.AuditRecord) []TrailEntry {
	deltas := Diff(records)
	out := make([]TrailEntry, len(records))
	for i, r := range records {
		out[i].Record = r
		if i > 0 {
			d := deltas[i-1]
			out[i].Delta = &d
		}
	}
	return out
}

// Between computes the delta from prev to curr. It never fails: damaged or
// legacy input degrades to top-level deltas plus a warning.
func Between(prev, curr domain.AuditRecord) Delta {
	d := Delta{
		RecordID:         curr.ID,
		ScoreDelta:       curr.ConfidenceScore - prev.ConfidenceScore,
		WeightedMRRDelta: curr.WeightedMonthly.Sub(prev.WeightedMonthly),
		Changes:          []FieldChange{},
	}
	if !curr.ScoredAt.After(prev.ScoredAt) {
		d.Warnings = append(d.Warnings, WarnNonMonotonic)
		log.Printf("audit: %s: record %s scored_at %s not after %s", curr.RecommendationID, curr.ID, curr.ScoredAt, prev.ScoredAt)
	}
	if prev.Breakdown == nil || curr.Breakdown == nil {
		d.Warnings = append(d.Warnings, WarnMissingBreakdown)
		return d
	}

	from, to := leaves(prev.Breakdown), leaves(curr.Breakdown)
	fields := make([]string, 0, len(from)+len(to))
	for k := range from {
		fields = append(fields, k)
	}
	for k := range to {
		if _, ok := from[k]; !ok {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)

	for _, f := range fields {
		a, b := from[f], to[f]
		if a == b {
			continue
		}
		d.Changes = append(d.Changes, FieldChange{Field: f, From: a, To: b, Delta: b - a})
	}
	return d
}

// leaves flattens a breakdown into comparable named integers.
func leaves(b *domain.ScoreBreakdown) map[string]int {
	out := map[string]int{
		"base_score":      b.BaseScore,
		"total_penalties": b.TotalPenalties,
		"total_bonus":     b.TotalBonus,
	}
	for k, v := range b.Penalties {
		out["penalty_breakdown."+k] = v
	}
	for k, v := range b.Bonuses {
		out["bonus_breakdown."+k] = v
	}
	return out
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dealscore/internal/domain"
)

const auditColumns = `id, recommendation_id, scored_at, trigger_source, status, confidence_score, weighted_monthly, breakdown`

// RecordScore appends an audit row and refreshes the deal's current score atomically.
func (db *DB) RecordScore(ctx context.Context, rec domain.AuditRecord, update domain.ScoreUpdate) (err error) {
	var breakdown any
	if rec.Breakdown != nil {
		raw, err := json.Marshal(rec.Breakdown)
		if err != nil {
			return fmt.Errorf("encode breakdown: %w", err)
		}
		breakdown = string(raw)
	}

	tx, err := db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO score_audits (`+auditColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.RecommendationID,
		formatTime(rec.ScoredAt),
		rec.TriggerSource,
		string(rec.Status),
		rec.ConfidenceScore,
		rec.WeightedMonthly.StringFixed(2),
		breakdown,
	); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE recommendations SET
	confidence_score = ?,
	confidence_percent = ?,
	weighted_monthly = ?,
	weighted_onetime = ?
WHERE id = ?`,
		update.ConfidenceScore,
		update.ConfidencePercent,
		update.WeightedMonthly.StringFixed(2),
		update.WeightedOnetime.StringFixed(2),
		rec.RecommendationID,
	); err != nil {
		return fmt.Errorf("update current score: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit score: %w", err)
	}
	return nil
}

func (db *DB) LatestAudit(ctx context.Context, recommendationID string) (domain.AuditRecord, bool, error) {
	row := db.SQL.QueryRowContext(ctx, `SELECT `+auditColumns+`
FROM score_audits
WHERE recommendation_id = ?
ORDER BY scored_at DESC
LIMIT 1`, recommendationID)
	rec, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AuditRecord{}, false, nil
	}
	if err != nil {
		return domain.AuditRecord{}, false, fmt.Errorf("latest audit: %w", err)
	}
	return rec, true, nil
}

func (db *DB) ListAudits(ctx context.Context, recommendationID string) ([]domain.AuditRecord, error) {
	rows, err := db.SQL.QueryContext(ctx, `SELECT `+auditColumns+`
FROM score_audits
WHERE recommendation_id = ?
ORDER BY scored_at ASC`, recommendationID)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanAudit(row rowScanner) (domain.AuditRecord, error) {
	var (
		rec              domain.AuditRecord
		scoredAt, status string
		breakdown        sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.RecommendationID, &scoredAt, &rec.TriggerSource, &status,
		&rec.ConfidenceScore, &rec.WeightedMonthly, &breakdown); err != nil {
		return rec, err
	}
	rec.Status = domain.Status(status)
	var err error
	if rec.ScoredAt, err = parseTime(scoredAt); err != nil {
		return rec, err
	}
	if breakdown.Valid && breakdown.String != "" {
		var b domain.ScoreBreakdown
		if err := json.Unmarshal([]byte(breakdown.String), &b); err != nil {
			return rec, fmt.Errorf("decode breakdown: %w", err)
		}
		rec.Breakdown = &b
	}
	return rec, nil
}

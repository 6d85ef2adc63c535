package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dealscore/internal/domain"
)

// AuditRepository

const auditColumns = `id, recommendation_id, scored_at, trigger_source, status, confidence_score, weighted_monthly, breakdown`

// RecordScore appends the audit row and refreshes the current score atomically.
func (db *DB) RecordScore(ctx context.Context, rec domain.AuditRecord, update domain.ScoreUpdate) (err error) {
	if !validID(rec.RecommendationID) {
		return domain.ErrNotFound
	}
	var breakdown []byte
	if rec.Breakdown != nil {
		if breakdown, err = json.Marshal(rec.Breakdown); err != nil {
			return fmt.Errorf("encode breakdown: %w", err)
		}
	}

	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
        INSERT INTO score_audits (`+auditColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, rec.ID, rec.RecommendationID, rec.ScoredAt, rec.TriggerSource, string(rec.Status),
		rec.ConfidenceScore, rec.WeightedMonthly, breakdown); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	if _, err = tx.Exec(ctx, `
        UPDATE recommendations
        SET confidence_score = $2, confidence_percent = $3, weighted_monthly = $4, weighted_onetime = $5
        WHERE id = $1
    `, rec.RecommendationID, update.ConfidenceScore, update.ConfidencePercent,
		update.WeightedMonthly, update.WeightedOnetime); err != nil {
		return fmt.Errorf("update current score: %w", err)
	}
	return nil
}

func (db *DB) LatestAudit(ctx context.Context, recommendationID string) (domain.AuditRecord, bool, error) {
	if !validID(recommendationID) {
		return domain.AuditRecord{}, false, nil
	}
	rec, err := scanAudit(db.Pool.QueryRow(ctx, `
        SELECT `+auditColumns+` FROM score_audits
        WHERE recommendation_id = $1
        ORDER BY scored_at DESC
        LIMIT 1
    `, recommendationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuditRecord{}, false, nil
	}
	if err != nil {
		return domain.AuditRecord{}, false, fmt.Errorf("latest audit: %w", err)
	}
	return rec, true, nil
}

func (db *DB) ListAudits(ctx context.Context, recommendationID string) ([]domain.AuditRecord, error) {
	if !validID(recommendationID) {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx, `
        SELECT `+auditColumns+` FROM score_audits
        WHERE recommendation_id = $1
        ORDER BY scored_at
    `, recommendationID)
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

func scanAudit(row pgx.Row) (domain.AuditRecord, error) {
	var (
		rec       domain.AuditRecord
		status    string
		breakdown []byte
	)
	if err := row.Scan(&rec.ID, &rec.RecommendationID, &rec.ScoredAt, &rec.TriggerSource, &status,
		&rec.ConfidenceScore, &rec.WeightedMonthly, &breakdown); err != nil {
		return rec, err
	}
	rec.Status = domain.Status(status)
	if len(breakdown) > 0 {
		var b domain.ScoreBreakdown
		if err := json.Unmarshal(breakdown, &b); err != nil {
			return rec, fmt.Errorf("decode breakdown: %w", err)
		}
		rec.Breakdown = &b
	}
	return rec, nil
}

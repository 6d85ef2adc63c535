package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dealscore/internal/domain"
)

const recommendationColumns = `id, created_by, title, status, weighted_monthly, weighted_onetime,
confidence_score, confidence_percent, sent_at, closed_lost_at, closed_lost_reason, created_at, updated_at`

// CreateRecommendation inserts rec, filling ID and timestamps when unset.
func (db *DB) CreateRecommendation(ctx context.Context, rec *domain.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = domain.StatusDraft
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt

	_, err := db.SQL.ExecContext(ctx, `INSERT INTO recommendations (`+recommendationColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.CreatedBy,
		rec.Title,
		string(rec.Status),
		rec.WeightedMonthly.StringFixed(2),
		rec.WeightedOnetime.StringFixed(2),
		rec.ConfidenceScore,
		rec.ConfidencePercent,
		formatTimePtr(rec.SentAt),
		formatTimePtr(rec.ClosedLostAt),
		rec.ClosedLostReason,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create recommendation: %w", err)
	}
	return nil
}

func (db *DB) GetRecommendation(ctx context.Context, id string) (domain.Recommendation, error) {
	row := db.SQL.QueryRowContext(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id)
	rec, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("get recommendation: %w", err)
	}
	return rec, nil
}

// UpdateStatus writes the lifecycle fields, guarded on the previous status.
func (db *DB) UpdateStatus(ctx context.Context, rec domain.Recommendation, from domain.Status) error {
	res, err := db.SQL.ExecContext(ctx, `UPDATE recommendations SET
	status = ?,
	sent_at = ?,
	closed_lost_at = ?,
	closed_lost_reason = ?,
	updated_at = ?
WHERE id = ? AND status = ?`,
		string(rec.Status),
		formatTimePtr(rec.SentAt),
		formatTimePtr(rec.ClosedLostAt),
		rec.ClosedLostReason,
		formatTime(rec.UpdatedAt),
		rec.ID,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		if _, err := db.GetRecommendation(ctx, rec.ID); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(row rowScanner) (domain.Recommendation, error) {
	var (
		rec                          domain.Recommendation
		status, createdAt, updatedAt string
		sentAt, closedLostAt, reason sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.CreatedBy, &rec.Title, &status, &rec.WeightedMonthly, &rec.WeightedOnetime,
		&rec.ConfidenceScore, &rec.ConfidencePercent, &sentAt, &closedLostAt, &reason, &createdAt, &updatedAt); err != nil {
		return rec, err
	}
	rec.Status = domain.Status(status)
	if reason.Valid {
		r := reason.String
		rec.ClosedLostReason = &r
	}
	var err error
	if rec.SentAt, err = parseTimePtr(sentAt); err != nil {
		return rec, err
	}
	if rec.ClosedLostAt, err = parseTimePtr(closedLostAt); err != nil {
		return rec, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return rec, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return rec, err
	}
	return rec, nil
}

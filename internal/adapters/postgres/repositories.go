package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dealscore/internal/domain"
)

// RecommendationRepository

const recommendationColumns = `id, created_by, title, status, weighted_monthly, weighted_onetime,
	confidence_score, confidence_percent, sent_at, closed_lost_at, closed_lost_reason, created_at, updated_at`

func (db *DB) CreateRecommendation(ctx context.Context, rec *domain.Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = domain.StatusDraft
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = rec.CreatedAt
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO recommendations (`+recommendationColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, rec.ID, rec.CreatedBy, rec.Title, string(rec.Status), rec.WeightedMonthly, rec.WeightedOnetime,
		rec.ConfidenceScore, rec.ConfidencePercent, rec.SentAt, rec.ClosedLostAt, rec.ClosedLostReason,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create recommendation: %w", err)
	}
	return nil
}

func (db *DB) GetRecommendation(ctx context.Context, id string) (domain.Recommendation, error) {
	if !validID(id) {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	rec, err := scanRecommendation(db.Pool.QueryRow(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("get recommendation: %w", err)
	}
	return rec, nil
}

func (db *DB) UpdateStatus(ctx context.Context, rec domain.Recommendation, from domain.Status) error {
	if !validID(rec.ID) {
		return domain.ErrNotFound
	}
	tag, err := db.Pool.Exec(ctx, `
        UPDATE recommendations
        SET status = $2, sent_at = $3, closed_lost_at = $4, closed_lost_reason = $5, updated_at = $6
        WHERE id = $1 AND status = $7
    `, rec.ID, string(rec.Status), rec.SentAt, rec.ClosedLostAt, rec.ClosedLostReason, rec.UpdatedAt, string(from))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetRecommendation(ctx, rec.ID); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}

func scanRecommendation(row pgx.Row) (domain.Recommendation, error) {
	var (
		rec    domain.Recommendation
		status string
	)
	err := row.Scan(&rec.ID, &rec.CreatedBy, &rec.Title, &status, &rec.WeightedMonthly, &rec.WeightedOnetime,
		&rec.ConfidenceScore, &rec.ConfidencePercent, &rec.SentAt, &rec.ClosedLostAt, &rec.ClosedLostReason,
		&rec.CreatedAt, &rec.UpdatedAt)
	rec.Status = domain.Status(status)
	return rec, err
}

// SignalRepository

func (db *DB) AddInvite(ctx context.Context, inv *domain.Invite) error {
	if !validID(inv.RecommendationID) {
		return domain.ErrNotFound
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO recommendation_invites (id, recommendation_id, email, sent_at, email_opened_at, viewed_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, inv.ID, inv.RecommendationID, inv.Email, inv.SentAt, inv.EmailOpenedAt, inv.ViewedAt, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("add invite: %w", err)
	}
	return nil
}

func (db *DB) ListInvites(ctx context.Context, recommendationID string) ([]domain.Invite, error) {
	if !validID(recommendationID) {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx, `
        SELECT id, recommendation_id, email, sent_at, email_opened_at, viewed_at, created_at
        FROM recommendation_invites
        WHERE recommendation_id = $1
        ORDER BY created_at
    `, recommendationID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var out []domain.Invite
	for rows.Next() {
		var inv domain.Invite
		if err := rows.Scan(&inv.ID, &inv.RecommendationID, &inv.Email, &inv.SentAt, &inv.EmailOpenedAt, &inv.ViewedAt, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (db *DB) MarkEmailOpened(ctx context.Context, inviteID string, at time.Time) (string, error) {
	return db.stampInvite(ctx, "email_opened_at", inviteID, at)
}

func (db *DB) MarkProposalViewed(ctx context.Context, inviteID string, at time.Time) (string, error) {
	return db.stampInvite(ctx, "viewed_at", inviteID, at)
}

// stampInvite keeps the first timestamp; later events only resolve the owner.
func (db *DB) stampInvite(ctx context.Context, column, inviteID string, at time.Time) (string, error) {
	if !validID(inviteID) {
		return "", domain.ErrNotFound
	}
	var recID string
	err := db.Pool.QueryRow(ctx, `
        UPDATE recommendation_invites SET `+column+` = COALESCE(`+column+`, $2)
        WHERE id = $1
        RETURNING recommendation_id
    `, inviteID, at).Scan(&recID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stamp invite %s: %w", column, err)
	}
	return recID, nil
}

func (db *DB) LogCommunication(ctx context.Context, comm *domain.Communication) error {
	if !validID(comm.RecommendationID) {
		return domain.ErrNotFound
	}
	if comm.ID == "" {
		comm.ID = uuid.NewString()
	}
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO communications (id, recommendation_id, direction, channel, contact_at, source)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, comm.ID, comm.RecommendationID, string(comm.Direction), comm.Channel, comm.ContactAt, comm.Source)
	if err != nil {
		return fmt.Errorf("log communication: %w", err)
	}
	return nil
}

func (db *DB) ListCommunications(ctx context.Context, recommendationID string) ([]domain.Communication, error) {
	if !validID(recommendationID) {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx, `
        SELECT id, recommendation_id, direction, channel, contact_at, source
        FROM communications
        WHERE recommendation_id = $1
        ORDER BY contact_at
    `, recommendationID)
	if err != nil {
		return nil, fmt.Errorf("list communications: %w", err)
	}
	defer rows.Close()

	var out []domain.Communication
	for rows.Next() {
		var (
			c         domain.Communication
			direction string
		)
		if err := rows.Scan(&c.ID, &c.RecommendationID, &direction, &c.Channel, &c.ContactAt, &c.Source); err != nil {
			return nil, fmt.Errorf("scan communication: %w", err)
		}
		c.Direction = domain.Direction(direction)
		out = append(out, c)
	}
	return out, rows.Err()
}

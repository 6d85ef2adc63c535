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

func (db *DB) AddInvite(ctx context.Context, inv *domain.Invite) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	_, err := db.SQL.ExecContext(ctx, `INSERT INTO recommendation_invites (id, recommendation_id, email, sent_at, email_opened_at, viewed_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.RecommendationID,
		inv.Email,
		formatTimePtr(inv.SentAt),
		formatTimePtr(inv.EmailOpenedAt),
		formatTimePtr(inv.ViewedAt),
		formatTime(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("add invite: %w", err)
	}
	return nil
}

func (db *DB) ListInvites(ctx context.Context, recommendationID string) ([]domain.Invite, error) {
	rows, err := db.SQL.QueryContext(ctx, `SELECT id, recommendation_id, email, sent_at, email_opened_at, viewed_at, created_at
FROM recommendation_invites
WHERE recommendation_id = ?
ORDER BY created_at ASC`, recommendationID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var out []domain.Invite
	for rows.Next() {
		var (
			inv                      domain.Invite
			sentAt, openedAt, viewed sql.NullString
			createdAt                string
		)
		if err := rows.Scan(&inv.ID, &inv.RecommendationID, &inv.Email, &sentAt, &openedAt, &viewed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		if inv.SentAt, err = parseTimePtr(sentAt); err != nil {
			return nil, err
		}
		if inv.EmailOpenedAt, err = parseTimePtr(openedAt); err != nil {
			return nil, err
		}
		if inv.ViewedAt, err = parseTimePtr(viewed); err != nil {
			return nil, err
		}
		if inv.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
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

// stampInvite sets column only if it is still empty, so the first event wins.
func (db *DB) stampInvite(ctx context.Context, column, inviteID string, at time.Time) (string, error) {
	var recID string
	err := db.SQL.QueryRowContext(ctx, `UPDATE recommendation_invites
SET `+column+` = COALESCE(`+column+`, ?)
WHERE id = ?
RETURNING recommendation_id`, formatTime(at), inviteID).Scan(&recID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stamp invite %s: %w", column, err)
	}
	return recID, nil
}

func (db *DB) LogCommunication(ctx context.Context, comm *domain.Communication) error {
	if comm.ID == "" {
		comm.ID = uuid.NewString()
	}
	_, err := db.SQL.ExecContext(ctx, `INSERT INTO communications (id, recommendation_id, direction, channel, contact_at, source)
VALUES (?, ?, ?, ?, ?, ?)`,
		comm.ID,
		comm.RecommendationID,
		string(comm.Direction),
		comm.Channel,
		formatTime(comm.ContactAt),
		comm.Source,
	)
	if err != nil {
		return fmt.Errorf("log communication: %w", err)
	}
	return nil
}

func (db *DB) ListCommunications(ctx context.Context, recommendationID string) ([]domain.Communication, error) {
	rows, err := db.SQL.QueryContext(ctx, `SELECT id, recommendation_id, direction, channel, contact_at, source
FROM communications
WHERE recommendation_id = ?
ORDER BY contact_at ASC`, recommendationID)
	if err != nil {
		return nil, fmt.Errorf("list communications: %w", err)
	}
	defer rows.Close()

	var out []domain.Communication
	for rows.Next() {
		var (
			c                    domain.Communication
			direction, contactAt string
		)
		if err := rows.Scan(&c.ID, &c.RecommendationID, &direction, &c.Channel, &contactAt, &c.Source); err != nil {
			return nil, fmt.Errorf("scan communication: %w", err)
		}
		c.Direction = domain.Direction(direction)
		if c.ContactAt, err = parseTime(contactAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

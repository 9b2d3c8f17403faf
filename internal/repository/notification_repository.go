package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// DefaultNotificationLimit caps ListByOwner when no limit is given.
const DefaultNotificationLimit = 50

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a NotificationRepository over db.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO notifications (id, owner_id, tenant_id, type, severity, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		RETURNING created_at
	`, n.ID, n.OwnerID, n.TenantID, n.Type, n.Severity, n.Message, n.Read, nullableTime(n.CreatedAt)).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification %s: %w", n.ID, mapWriteError(err))
	}
	return nil
}

// ListByOwner returns the owner's notifications, newest first.
func (r *notificationRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, tenant_id, type, severity, message, read, created_at
		FROM notifications
		WHERE owner_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, ownerID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for owner %s: %w", ownerID, err)
	}

	notifications, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Notification, error) {
		var n models.Notification
		err := row.Scan(&n.ID, &n.OwnerID, &n.TenantID, &n.Type, &n.Severity, &n.Message, &n.Read, &n.CreatedAt)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification rows: %w", err)
	}
	return notifications, nil
}

// nullableTime maps the zero time to NULL so the column default applies.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

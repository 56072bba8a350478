package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	models "checkout-fulfillment/model"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrNotificationBusy is returned by ClaimNotification when the row is held
	// by another worker or is no longer pending.
	ErrNotificationBusy = errors.New("notification not claimable")
)

const (
	insertNotificationSQL = `INSERT INTO notifications (id, kind, order_id, user_id, status, attempts, created_at) VALUES ($1, $2, $3, $4, $5, 0, $6) ON CONFLICT (kind, order_id) DO NOTHING`
	queryNotificationID   = `SELECT id FROM notifications WHERE kind = $1 AND order_id = $2`
	claimNotification     = `UPDATE notifications SET status = $1, claimed_at = $2 WHERE id = $3 AND (status = $4 OR (status = $5 AND claimed_at < $6))`
	queryNotification     = `SELECT id, kind, order_id, user_id, status, attempts, last_error, created_at FROM notifications WHERE id = $1`
	queryPending          = `SELECT id FROM notifications WHERE (status = $1 OR (status = $2 AND claimed_at < $3)) AND attempts < $4 ORDER BY created_at LIMIT $5`
	markSent              = `UPDATE notifications SET status = $1, attempts = attempts + 1, sent_at = $2, last_error = NULL WHERE id = $3`
	markFailed            = `UPDATE notifications SET status = $1, attempts = attempts + 1, last_error = $2 WHERE id = $3`
)

func insertNotification(ctx context.Context, q querier, id string, kind models.NotificationKind, orderID int64, userID string, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, insertNotificationSQL,
		id, string(kind), orderID, userID, string(models.NotificationPending), now)
	if err != nil {
		return false, fmt.Errorf("enqueue %s for order %d: %w", kind, orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnqueueNotification adds a pending notification. Only one notification of a
// kind exists per order; when it is already there its id is returned with
// created=false.
func (s *SQLStore) EnqueueNotification(ctx context.Context, kind models.NotificationKind, orderID int64, userID string) (string, bool, error) {
	id := uuid.NewString()
	created, err := insertNotification(ctx, s.DB, id, kind, orderID, userID, s.clock())
	if err != nil {
		return "", false, err
	}
	if created {
		return id, true, nil
	}

	var existing string
	if err := s.DB.QueryRowContext(ctx, queryNotificationID, string(kind), orderID).Scan(&existing); err != nil {
		return "", false, err
	}
	return existing, false, nil
}

// ClaimNotification marks the notification as being sent. A row can be claimed
// while pending, or when a previous claim is older than lease.
func (s *SQLStore) ClaimNotification(ctx context.Context, id string, lease time.Duration) (models.Notification, error) {
	var n models.Notification
	now := s.clock()

	res, err := s.DB.ExecContext(ctx, claimNotification,
		string(models.NotificationSending), now, id,
		string(models.NotificationPending), string(models.NotificationSending), now.Add(-lease))
	if err != nil {
		return n, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return n, err
	}

	var (
		kind, status string
		lastErr      sql.NullString
	)
	err = s.DB.QueryRowContext(ctx, queryNotification, id).
		Scan(&n.ID, &kind, &n.OrderID, &n.UserID, &status, &n.Attempts, &lastErr, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return n, ErrNotificationNotFound
	}
	if err != nil {
		return n, err
	}
	n.Kind = models.NotificationKind(kind)
	n.Status = models.NotificationStatus(status)
	n.LastError = lastErr.String

	if affected == 0 {
		return n, fmt.Errorf("%w: %s is %s", ErrNotificationBusy, id, status)
	}
	return n, nil
}

// PendingNotifications lists claimable notifications, oldest first.
func (s *SQLStore) PendingNotifications(ctx context.Context, limit, maxAttempts int, lease time.Duration) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, queryPending,
		string(models.NotificationPending), string(models.NotificationSending),
		s.clock().Add(-lease), maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) MarkNotificationSent(ctx context.Context, id string) error {
	return s.execOne(ctx, markSent, string(models.NotificationSent), s.clock(), id)
}

// MarkNotificationFailed records a delivery error. The row goes back to pending
// unless permanent is set.
func (s *SQLStore) MarkNotificationFailed(ctx context.Context, id, cause string, permanent bool) error {
	status := models.NotificationPending
	if permanent {
		status = models.NotificationFailed
	}
	return s.execOne(ctx, markFailed, string(status), cause, id)
}

func (s *SQLStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

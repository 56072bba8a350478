package store

import (
	"context"
	"time"

	models "checkout-fulfillment/model"
)

// POST /api/confirm-stripe-payment - FulfillOrder
// POST /api/send-email - GetOrder, EnqueueNotification
// notification dispatcher - ClaimNotification, PendingNotifications, Mark*

type Store interface {
	FulfillOrder(ctx context.Context, orderID int64, userID string) (FulfillmentRow, error)

	GetOrder(ctx context.Context, orderID int64) (models.Order, error)
	GetUser(ctx context.Context, userID string) (models.User, error)

	EnqueueNotification(ctx context.Context, kind models.NotificationKind, orderID int64, userID string) (id string, created bool, err error)
	ClaimNotification(ctx context.Context, id string, lease time.Duration) (models.Notification, error)
	PendingNotifications(ctx context.Context, limit, maxAttempts int, lease time.Duration) ([]string, error)
	MarkNotificationSent(ctx context.Context, id string) error
	MarkNotificationFailed(ctx context.Context, id, cause string, permanent bool) error

	Ping(ctx context.Context) error
	Close() error
}

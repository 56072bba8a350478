package models

import "time"

type NotificationKind string

const (
	// NotificationPurchaseConfirmation is enqueued by the webhook once an order is paid.
	NotificationPurchaseConfirmation NotificationKind = "purchase_confirmation"
	// NotificationOrderDetails is requested from the payment-success page.
	NotificationOrderDetails NotificationKind = "order_details"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSending NotificationStatus = "sending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is an outbox row: an email that still has to be (or has been) delivered.
type Notification struct {
	ID        string
	Kind      NotificationKind
	OrderID   int64
	UserID    string
	Status    NotificationStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
}

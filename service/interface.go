package service

import (
	"context"

	"checkout-fulfillment/webhook"
)

type ServiceInterface interface {
	HandleEvent(ctx context.Context, ev webhook.Event) (Result, error)
	RequestConfirmation(ctx context.Context, userID string, orderID int64) error
}

// Notifier delivers a queued notification right away. notify.Dispatcher implements it.
type Notifier interface {
	Dispatch(ctx context.Context, id string) error
}

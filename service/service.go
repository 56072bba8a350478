package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	models "checkout-fulfillment/model"
	"checkout-fulfillment/notify"
	"checkout-fulfillment/store"
	"checkout-fulfillment/webhook"
)

// ErrInvalidSession is returned when a paid session lacks usable order/user metadata.
var ErrInvalidSession = errors.New("invalid session metadata")

type Outcome int

const (
	OutcomeFulfilled Outcome = iota
	// OutcomeIgnored: the event kind or payment status needs no work.
	OutcomeIgnored
	// OutcomeDuplicate: the order was already fulfilled by an earlier delivery.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFulfilled:
		return "fulfilled"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

const (
	MessageUnhandled       = "Unhandled event type"
	MessageNotPaid         = "Payment not completed"
	MessageDuplicate       = "Payment already processed"
	MessageConfirmed       = "Payment confirmed"
	MessageConfirmedQueued = "Payment confirmed, confirmation email queued"
)

type Result struct {
	Outcome  Outcome
	Message  string
	OrderID  int64
	Notified bool
}

type Service struct {
	store    store.Store
	notifier Notifier
	logger   *slog.Logger
}

func NewService(s store.Store, n Notifier, logger *slog.Logger) *Service {
	return &Service{store: s, notifier: n, logger: logger}
}

// HandleEvent routes a verified event. Only checkout sessions are acted on.
func (s *Service) HandleEvent(ctx context.Context, ev webhook.Event) (Result, error) {
	switch ev.Kind {
	case webhook.KindCheckoutSessionCompleted, webhook.KindCheckoutSessionAsyncPaymentSucceeded:
		return s.Fulfill(ctx, ev.Session)
	default:
		s.logger.Info("ignoring webhook event", "event_id", ev.ID, "type", ev.Type)
		return Result{Outcome: OutcomeIgnored, Message: MessageUnhandled}, nil
	}
}

// Fulfill applies a paid checkout session: order status, inventory and cart in
// one transaction, then a best-effort immediate send of the queued confirmation.
func (s *Service) Fulfill(ctx context.Context, sess webhook.Session) (Result, error) {
	if !sess.Paid() {
		s.logger.Info("checkout session not paid", "session_id", sess.ID, "payment_status", sess.PaymentStatus)
		return Result{Outcome: OutcomeIgnored, Message: MessageNotPaid}, nil
	}

	orderID, err := strconv.ParseInt(sess.OrderID, 10, 64)
	if err != nil || orderID <= 0 {
		return Result{}, fmt.Errorf("%w: orderId %q", ErrInvalidSession, sess.OrderID)
	}
	if sess.UserID == "" {
		return Result{OrderID: orderID}, fmt.Errorf("%w: missing userId", ErrInvalidSession)
	}

	log := s.logger.With("order_id", orderID, "user_id", sess.UserID, "session_id", sess.ID)

	row, err := s.store.FulfillOrder(ctx, orderID, sess.UserID)
	if errors.Is(err, store.ErrAlreadyFulfilled) {
		log.Info("order already fulfilled, skipping replay")
		return Result{Outcome: OutcomeDuplicate, Message: MessageDuplicate, OrderID: orderID}, nil
	}
	if err != nil {
		return Result{OrderID: orderID}, fmt.Errorf("fulfill order %d: %w", orderID, err)
	}
	log.Info("order fulfilled", "lines", len(row.Lines), "cart_id", row.CartID)

	res := Result{Outcome: OutcomeFulfilled, Message: MessageConfirmed, OrderID: orderID}
	if row.NotificationID == "" {
		log.Warn("no email on file, skipping confirmation")
		return res, nil
	}

	if err := s.notifier.Dispatch(ctx, row.NotificationID); err != nil {
		log.Warn("confirmation email not sent, left for retry", "notification_id", row.NotificationID, "error", err)
		res.Message = MessageConfirmedQueued
		return res, nil
	}
	res.Notified = true
	res.Message = notify.PurchaseMessage
	return res, nil
}

// RequestConfirmation queues the order-details email for an order the user owns
// and tries to deliver it right away. Asking twice for the same order reuses the
// first notification.
func (s *Service) RequestConfirmation(ctx context.Context, userID string, orderID int64) error {
	if userID == "" || orderID <= 0 {
		return errors.New("user id and order id are required")
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderID, err)
	}
	if order.UserID != userID {
		return fmt.Errorf("%w: order %d does not belong to user %s", store.ErrOrderNotFound, orderID, userID)
	}

	id, created, err := s.store.EnqueueNotification(ctx, models.NotificationOrderDetails, orderID, userID)
	if err != nil {
		return err
	}
	if !created {
		s.logger.Info("order details already requested", "order_id", orderID, "notification_id", id)
	}

	if err := s.notifier.Dispatch(ctx, id); err != nil && !errors.Is(err, notify.ErrNotClaimed) {
		return fmt.Errorf("send order details for %d: %w", orderID, err)
	}
	return nil
}

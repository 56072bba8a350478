package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"checkout-fulfillment/config"
	models "checkout-fulfillment/model"
	"checkout-fulfillment/store"
)

var (
	// ErrNotClaimed means another worker holds the notification or it is already done.
	ErrNotClaimed = errors.New("notification not claimed")
	// ErrPermanent marks failures that retrying cannot fix (missing user, no email, unknown kind).
	ErrPermanent = errors.New("notification cannot be delivered")
)

// Store is the outbox and lookup surface the dispatcher needs.
type Store interface {
	ClaimNotification(ctx context.Context, id string, lease time.Duration) (models.Notification, error)
	PendingNotifications(ctx context.Context, limit, maxAttempts int, lease time.Duration) ([]string, error)
	MarkNotificationSent(ctx context.Context, id string) error
	MarkNotificationFailed(ctx context.Context, id, cause string, permanent bool) error
	GetUser(ctx context.Context, userID string) (models.User, error)
	GetOrder(ctx context.Context, orderID int64) (models.Order, error)
}

// Dispatcher delivers outbox notifications at least once.
type Dispatcher struct {
	store    Store
	mailer   Mailer
	renderer *Renderer
	limiter  *rate.Limiter
	cfg      config.NotificationsConfig
	logger   *slog.Logger
}

func NewDispatcher(st Store, m Mailer, r *Renderer, cfg config.NotificationsConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		store:    st,
		mailer:   m,
		renderer: r,
		limiter:  rate.NewLimiter(limit, burst),
		cfg:      cfg,
		logger:   logger,
	}
}

// Dispatch claims, renders and sends one notification.
func (d *Dispatcher) Dispatch(ctx context.Context, id string) error {
	n, err := d.store.ClaimNotification(ctx, id, d.cfg.ClaimLease)
	if errors.Is(err, store.ErrNotificationBusy) {
		return fmt.Errorf("%w: %v", ErrNotClaimed, err)
	}
	if err != nil {
		return fmt.Errorf("claim notification %s: %w", id, err)
	}
	log := d.logger.With("notification_id", n.ID, "kind", n.Kind, "order_id", n.OrderID)

	msg, err := d.render(ctx, n)
	if err != nil {
		d.fail(ctx, log, n, err, errors.Is(err, ErrPermanent))
		return err
	}

	// an unsent claim is picked up again once its lease runs out
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		d.fail(ctx, log, n, err, false)
		return fmt.Errorf("deliver notification %s: %w", n.ID, err)
	}
	if err := d.store.MarkNotificationSent(ctx, n.ID); err != nil {
		return fmt.Errorf("mark notification %s sent: %w", n.ID, err)
	}
	log.Info("notification sent", "attempt", n.Attempts+1)
	return nil
}

func (d *Dispatcher) render(ctx context.Context, n models.Notification) (Message, error) {
	user, err := d.store.GetUser(ctx, n.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		return Message{}, fmt.Errorf("%w: user %s not found", ErrPermanent, n.UserID)
	}
	if err != nil {
		return Message{}, err
	}
	if user.Email == "" {
		return Message{}, fmt.Errorf("%w: user %s has no email", ErrPermanent, n.UserID)
	}

	switch n.Kind {
	case models.NotificationPurchaseConfirmation:
		return d.renderer.PurchaseConfirmation(user, n.OrderID)
	case models.NotificationOrderDetails:
		order, err := d.store.GetOrder(ctx, n.OrderID)
		if errors.Is(err, store.ErrOrderNotFound) {
			return Message{}, fmt.Errorf("%w: order %d not found", ErrPermanent, n.OrderID)
		}
		if err != nil {
			return Message{}, err
		}
		return d.renderer.OrderDetails(user, order)
	default:
		return Message{}, fmt.Errorf("%w: unknown kind %q", ErrPermanent, n.Kind)
	}
}

func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, n models.Notification, cause error, permanent bool) {
	if n.Attempts+1 >= d.cfg.MaxAttempts {
		permanent = true
	}
	log.Warn("notification delivery failed",
		"attempt", n.Attempts+1,
		"permanent", permanent,
		"error", cause)
	if err := d.store.MarkNotificationFailed(ctx, n.ID, cause.Error(), permanent); err != nil {
		log.Error("record notification failure", "error", err)
	}
}

// DispatchPending sends one batch of claimable notifications and reports how many went out.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	ids, err := d.store.PendingNotifications(ctx, d.cfg.BatchSize, d.cfg.MaxAttempts, d.cfg.ClaimLease)
	if err != nil {
		return 0, fmt.Errorf("list pending notifications: %w", err)
	}

	sent := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		err := d.Dispatch(ctx, id)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrNotClaimed):
		default:
			d.logger.Debug("dispatch failed", "notification_id", id, "error", err)
		}
	}
	return sent, nil
}

// Run polls the outbox until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := d.cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("notification dispatcher started", "interval", interval)
	for {
		if n, err := d.DispatchPending(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("dispatch pending notifications", "error", err)
		} else if n > 0 {
			d.logger.Info("dispatched notifications", "count", n)
		}

		select {
		case <-ctx.Done():
			d.logger.Info("notification dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

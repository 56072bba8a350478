package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	models "checkout-fulfillment/model"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyFulfilled = errors.New("order already fulfilled")
	ErrCartNotFound     = errors.New("cart not found")
	ErrUserNotFound     = errors.New("user not found")
)

const (
	updateOrderPaid  = `UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`
	queryOrderStatus = `SELECT status FROM orders WHERE id = $1`
	queryOrder       = `SELECT id, user_id, status, total, additional_info, date FROM orders WHERE id = $1`
	queryCartByUser  = `SELECT id FROM carts WHERE user_id = $1`
	queryOrderLines  = `SELECT product_id, quantity FROM order_lines WHERE order_id = $1 ORDER BY id`
	queryUser        = `SELECT id, email, first_name FROM users WHERE id = $1`
)

// FulfillmentRow describes what a committed fulfillment touched.
type FulfillmentRow struct {
	OrderID int64
	CartID  int64
	Lines   []models.OrderLine

	// User is nil when the user row is missing or has no email; no notification is enqueued then.
	User           *models.User
	NotificationID string
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is a Store backed by database/sql. The same statements run on
// Postgres (lib/pq) and SQLite (modernc), both accept $N placeholders.
type SQLStore struct {
	DB     *sql.DB
	Driver string

	// per-order mutexes so two deliveries of the same event in this process
	// don't race on the same order row. Keys are "order:<id>" -> *sync.Mutex
	locks sync.Map

	now func() time.Time
}

// Open connects to the database for the given driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	name, ok := driverNames[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLStore{DB: db, Driver: driver}, nil
}

func (s *SQLStore) Close() error { return s.DB.Close() }

func (s *SQLStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *SQLStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// helper: acquire a process-local lock for key. Returns unlock func.
func (s *SQLStore) lockFor(key string) func() {
	if v, ok := s.locks.Load(key); ok {
		m := v.(*sync.Mutex)
		m.Lock()
		return m.Unlock
	}

	m := &sync.Mutex{}
	actual, _ := s.locks.LoadOrStore(key, m)
	mtx := actual.(*sync.Mutex)
	mtx.Lock()
	return mtx.Unlock
}

// FulfillOrder applies a paid checkout in one transaction: the order moves to
// PAYMENT_RECEIVED, every order line updates its product and leaves the cart,
// and a purchase confirmation is put in the outbox. Nothing is committed if any
// step fails.
func (s *SQLStore) FulfillOrder(ctx context.Context, orderID int64, userID string) (FulfillmentRow, error) {
	out := FulfillmentRow{OrderID: orderID}

	unlock := s.lockFor(fmt.Sprintf("order:%d", orderID))
	defer unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return out, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := markPaymentReceived(ctx, tx, orderID); err != nil {
		return out, err
	}

	if err := tx.QueryRowContext(ctx, queryCartByUser, userID).Scan(&out.CartID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, ErrCartNotFound
		}
		return out, err
	}

	lines, err := orderLines(ctx, tx, orderID)
	if err != nil {
		return out, err
	}
	out.Lines = lines

	if err := applyOrderLines(ctx, tx, out.CartID, lines); err != nil {
		return out, err
	}

	user, err := getUser(ctx, tx, userID)
	switch {
	case err == nil && user.Email != "":
		id := uuid.NewString()
		if _, err := insertNotification(ctx, tx, id, models.NotificationPurchaseConfirmation, orderID, userID, s.clock()); err != nil {
			return out, err
		}
		out.User = &user
		out.NotificationID = id
	case err == nil, errors.Is(err, ErrUserNotFound):
		// nobody to notify
	default:
		return out, err
	}

	if err := tx.Commit(); err != nil {
		return out, err
	}
	committed = true
	return out, nil
}

func markPaymentReceived(ctx context.Context, q querier, orderID int64) error {
	res, err := q.ExecContext(ctx, updateOrderPaid,
		string(models.OrderStatusPaymentReceived), orderID, string(models.OrderStatusCreated))
	if err != nil {
		return fmt.Errorf("update order %d: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var status string
	if err := q.QueryRowContext(ctx, queryOrderStatus, orderID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	return fmt.Errorf("%w: order %d is %s", ErrAlreadyFulfilled, orderID, status)
}

func orderLines(ctx context.Context, q querier, orderID int64) ([]models.OrderLine, error) {
	rows, err := q.QueryContext(ctx, queryOrderLines, orderID)
	if err != nil {
		return nil, err
	}
	// closed before the next statement runs on the same connection
	defer rows.Close()

	out := []models.OrderLine{}
	for rows.Next() {
		var l models.OrderLine
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func getUser(ctx context.Context, q querier, userID string) (models.User, error) {
	var (
		u         models.User
		email     sql.NullString
		firstName sql.NullString
	)
	err := q.QueryRowContext(ctx, queryUser, userID).Scan(&u.ID, &email, &firstName)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrUserNotFound
	}
	if err != nil {
		return u, err
	}
	u.Email = email.String
	u.FirstName = firstName.String
	return u, nil
}

// GetUser returns the user's contact fields.
func (s *SQLStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	return getUser(ctx, s.DB, userID)
}

// GetOrder returns the order header used by the order-details email.
func (s *SQLStore) GetOrder(ctx context.Context, orderID int64) (models.Order, error) {
	var (
		o      models.Order
		status string
		info   sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, queryOrder, orderID).
		Scan(&o.ID, &o.UserID, &status, &o.Total, &info, &o.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrOrderNotFound
	}
	if err != nil {
		return o, err
	}
	o.Status = models.OrderStatus(status)
	o.AdditionalInfo = info.String
	return o, nil
}

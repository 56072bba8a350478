package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-fulfillment/config"
	models "checkout-fulfillment/model"
	"checkout-fulfillment/store"
)

// ---- in-memory outbox ----
type fakeStore struct {
	mu            sync.Mutex
	notifications map[string]*models.Notification
	users         map[string]models.User
	orders        map[int64]models.Order
	permanent     map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notifications: map[string]*models.Notification{},
		users:         map[string]models.User{},
		orders:        map[int64]models.Order{},
		permanent:     map[string]bool{},
	}
}

func (f *fakeStore) add(n models.Notification) {
	if n.Status == "" {
		n.Status = models.NotificationPending
	}
	f.notifications[n.ID] = &n
}

func (f *fakeStore) ClaimNotification(_ context.Context, id string, _ time.Duration) (models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return models.Notification{}, store.ErrNotificationNotFound
	}
	if n.Status != models.NotificationPending {
		return *n, store.ErrNotificationBusy
	}
	n.Status = models.NotificationSending
	return *n, nil
}

func (f *fakeStore) PendingNotifications(_ context.Context, limit, maxAttempts int, _ time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []string{}
	for id, n := range f.notifications {
		if n.Status == models.NotificationPending && n.Attempts < maxAttempts {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) MarkNotificationSent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.notifications[id]
	n.Status = models.NotificationSent
	n.Attempts++
	return nil
}

func (f *fakeStore) MarkNotificationFailed(_ context.Context, id, cause string, permanent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.notifications[id]
	n.Attempts++
	n.LastError = cause
	n.Status = models.NotificationPending
	if permanent {
		n.Status = models.NotificationFailed
	}
	f.permanent[id] = permanent
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, userID string) (models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, store.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) GetOrder(_ context.Context, orderID int64) (models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return models.Order{}, store.ErrOrderNotFound
	}
	return o, nil
}

// ---- recording mailer ----
type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func testSite() config.SiteConfig {
	return config.SiteConfig{CompanyName: "Jones", WebsiteURL: "https://jones.example", SupportEmail: "orders@jones.com"}
}

func newTestDispatcher(t *testing.T, st Store, m Mailer, maxAttempts int) *Dispatcher {
	t.Helper()
	r, err := NewRenderer(testSite())
	require.NoError(t, err)
	cfg := config.NotificationsConfig{BatchSize: 10, MaxAttempts: maxAttempts, ClaimLease: time.Minute, PollInterval: 10 * time.Millisecond}
	return NewDispatcher(st, m, r, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDispatch_PurchaseConfirmation(t *testing.T) {
	st := newFakeStore()
	st.users["u1"] = models.User{ID: "u1", Email: "ada@example.com", FirstName: "Ada"}
	st.add(models.Notification{ID: "n1", Kind: models.NotificationPurchaseConfirmation, OrderID: 42, UserID: "u1"})
	m := &fakeMailer{}

	d := newTestDispatcher(t, st, m, 3)
	require.NoError(t, d.Dispatch(context.Background(), "n1"))

	require.Len(t, m.sent, 1)
	msg := m.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Message from Jones", msg.Subject)
	assert.Contains(t, msg.HTML, "Hello, Ada!")
	assert.Contains(t, msg.Text, PurchaseMessage)
	assert.Contains(t, msg.Text, "#42")
	assert.Equal(t, models.NotificationSent, st.notifications["n1"].Status)
}

func TestDispatch_OrderDetails(t *testing.T) {
	st := newFakeStore()
	st.users["u1"] = models.User{ID: "u1", Email: "ada@example.com"}
	st.orders[42] = models.Order{
		ID:    42,
		Total: decimal.RequireFromString("59.9"),
		Date:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	st.add(models.Notification{ID: "n1", Kind: models.NotificationOrderDetails, OrderID: 42, UserID: "u1"})
	m := &fakeMailer{}

	d := newTestDispatcher(t, st, m, 3)
	require.NoError(t, d.Dispatch(context.Background(), "n1"))

	require.Len(t, m.sent, 1)
	body := m.sent[0].Text
	assert.Equal(t, "Thanks for your order!", m.sent[0].Subject)
	assert.Contains(t, body, "Order ID: 42")
	assert.Contains(t, body, "Total: $59.90")
	assert.Contains(t, body, "Date: Mar 1, 2024")
	assert.Contains(t, body, "Additional Info: N/A")
	assert.Empty(t, m.sent[0].HTML)
}

func TestDispatch_AlreadyClaimed(t *testing.T) {
	st := newFakeStore()
	st.add(models.Notification{ID: "n1", Kind: models.NotificationPurchaseConfirmation, UserID: "u1", Status: models.NotificationSent})
	m := &fakeMailer{}

	err := newTestDispatcher(t, st, m, 3).Dispatch(context.Background(), "n1")
	require.ErrorIs(t, err, ErrNotClaimed)
	assert.Empty(t, m.sent)
}

func TestDispatch_MissingUserIsPermanent(t *testing.T) {
	st := newFakeStore()
	st.add(models.Notification{ID: "n1", Kind: models.NotificationPurchaseConfirmation, OrderID: 42, UserID: "ghost"})
	m := &fakeMailer{}

	err := newTestDispatcher(t, st, m, 5).Dispatch(context.Background(), "n1")
	require.ErrorIs(t, err, ErrPermanent)
	assert.Empty(t, m.sent)
	assert.True(t, st.permanent["n1"])
	assert.Equal(t, models.NotificationFailed, st.notifications["n1"].Status)
}

func TestDispatch_TransportErrorRetriesUntilMaxAttempts(t *testing.T) {
	st := newFakeStore()
	st.users["u1"] = models.User{ID: "u1", Email: "ada@example.com"}
	st.add(models.Notification{ID: "n1", Kind: models.NotificationPurchaseConfirmation, OrderID: 42, UserID: "u1"})
	m := &fakeMailer{err: errors.New("535 authentication failed")}
	d := newTestDispatcher(t, st, m, 2)

	require.Error(t, d.Dispatch(context.Background(), "n1"))
	assert.False(t, st.permanent["n1"])
	assert.Equal(t, models.NotificationPending, st.notifications["n1"].Status)
	assert.Equal(t, "535 authentication failed", st.notifications["n1"].LastError)

	require.Error(t, d.Dispatch(context.Background(), "n1"))
	assert.True(t, st.permanent["n1"])
	assert.Equal(t, models.NotificationFailed, st.notifications["n1"].Status)
	assert.Equal(t, 2, st.notifications["n1"].Attempts)
}

func TestDispatchPending(t *testing.T) {
	st := newFakeStore()
	st.users["u1"] = models.User{ID: "u1", Email: "ada@example.com"}
	st.add(models.Notification{ID: "a", Kind: models.NotificationPurchaseConfirmation, OrderID: 1, UserID: "u1"})
	st.add(models.Notification{ID: "b", Kind: models.NotificationPurchaseConfirmation, OrderID: 2, UserID: "ghost"})
	st.add(models.Notification{ID: "c", Kind: models.NotificationPurchaseConfirmation, OrderID: 3, UserID: "u1", Status: models.NotificationSent})
	m := &fakeMailer{}

	sent, err := newTestDispatcher(t, st, m, 3).DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Len(t, m.sent, 1)
}

func TestRunStopsWithContext(t *testing.T) {
	st := newFakeStore()
	st.users["u1"] = models.User{ID: "u1", Email: "ada@example.com"}
	st.add(models.Notification{ID: "a", Kind: models.NotificationPurchaseConfirmation, OrderID: 1, UserID: "u1"})
	m := &fakeMailer{}
	d := newTestDispatcher(t, st, m, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return len(m.sent) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestRendererEscapesHTML(t *testing.T) {
	r, err := NewRenderer(testSite())
	require.NoError(t, err)

	msg, err := r.PurchaseConfirmation(models.User{Email: "x@example.com", FirstName: "<b>Eve</b>"}, 7)
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<b>Eve</b>")
	assert.Contains(t, msg.HTML, "&lt;b&gt;Eve&lt;/b&gt;")
}

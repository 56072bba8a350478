package webhook

import "github.com/stripe/stripe-go/v76"

// Kind is the closed set of provider events this service understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindCheckoutSessionCompleted
	// KindCheckoutSessionAsyncPaymentSucceeded is sent for delayed payment
	// methods once the funds arrive.
	KindCheckoutSessionAsyncPaymentSucceeded
)

func (k Kind) String() string {
	switch k {
	case KindCheckoutSessionCompleted:
		return "checkout.session.completed"
	case KindCheckoutSessionAsyncPaymentSucceeded:
		return "checkout.session.async_payment_succeeded"
	default:
		return "unknown"
	}
}

func kindOf(t stripe.EventType) Kind {
	switch t {
	case "checkout.session.completed":
		return KindCheckoutSessionCompleted
	case "checkout.session.async_payment_succeeded":
		return KindCheckoutSessionAsyncPaymentSucceeded
	default:
		return KindUnknown
	}
}

// Event is a verified provider event. Session is only set for checkout kinds.
type Event struct {
	ID      string
	Type    string
	Kind    Kind
	Session Session
}

// Session is the part of a checkout session the fulfillment needs.
// OrderID and UserID come from the metadata attached when the session was created.
type Session struct {
	ID            string
	OrderID       string
	UserID        string
	PaymentStatus string
}

func (s Session) Paid() bool {
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

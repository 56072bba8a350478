package webhook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// SignatureHeader carries the provider signature of the raw body.
const SignatureHeader = "Stripe-Signature"

// ErrSignatureInvalid covers a bad or stale signature as well as a payload
// that cannot be decoded.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// Verifier authenticates webhook payloads with the endpoint signing secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Parse verifies payload against the signature header and decodes the event.
func (v *Verifier) Parse(payload []byte, signature string) (Event, error) {
	if v.secret == "" {
		return Event{}, fmt.Errorf("%w: no signing secret configured", ErrSignatureInvalid)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type), Kind: kindOf(ev.Type)}
	if out.Kind == KindUnknown {
		return out, nil
	}

	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return Event{}, fmt.Errorf("%w: %s without data.object", ErrSignatureInvalid, ev.Type)
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return Event{}, fmt.Errorf("%w: decode checkout session: %v", ErrSignatureInvalid, err)
	}
	out.Session = Session{
		ID:            cs.ID,
		OrderID:       cs.Metadata["orderId"],
		UserID:        cs.Metadata["userId"],
		PaymentStatus: string(cs.PaymentStatus),
	}
	return out, nil
}

package webhook

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func checkoutPayload(eventType, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
  "id": "evt_1",
  "object": "event",
  "type": %q,
  "created": 1700000000,
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "payment_status": %q,
      "metadata": {"orderId": "42", "userId": "u1"}
    }
  }
}`, eventType, paymentStatus))
}

func TestParse_CheckoutCompleted(t *testing.T) {
	v := NewVerifier(testSecret)
	payload := checkoutPayload("checkout.session.completed", "paid")

	ev, err := v.Parse(payload, Sign(payload, testSecret, time.Now()))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, KindCheckoutSessionCompleted, ev.Kind)
	assert.Equal(t, "cs_test_1", ev.Session.ID)
	assert.Equal(t, "42", ev.Session.OrderID)
	assert.Equal(t, "u1", ev.Session.UserID)
	assert.True(t, ev.Session.Paid())
}

func TestParse_AsyncPaymentSucceeded(t *testing.T) {
	v := NewVerifier(testSecret)
	payload := checkoutPayload("checkout.session.async_payment_succeeded", "paid")

	ev, err := v.Parse(payload, Sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, KindCheckoutSessionAsyncPaymentSucceeded, ev.Kind)
}

func TestParse_UnknownTypeHasNoSession(t *testing.T) {
	v := NewVerifier(testSecret)
	payload := []byte(`{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)

	ev, err := v.Parse(payload, Sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, ev.Kind)
	assert.Equal(t, "invoice.paid", ev.Type)
	assert.Empty(t, ev.Session.OrderID)
}

func TestParse_Rejects(t *testing.T) {
	payload := checkoutPayload("checkout.session.completed", "paid")

	cases := map[string]struct {
		verifier  *Verifier
		payload   []byte
		signature string
	}{
		"wrong secret": {
			verifier:  NewVerifier(testSecret),
			payload:   payload,
			signature: Sign(payload, "whsec_other", time.Now()),
		},
		"missing header": {
			verifier: NewVerifier(testSecret),
			payload:  payload,
		},
		"tampered body": {
			verifier:  NewVerifier(testSecret),
			payload:   checkoutPayload("checkout.session.completed", "unpaid"),
			signature: Sign(payload, testSecret, time.Now()),
		},
		"stale timestamp": {
			verifier:  NewVerifier(testSecret),
			payload:   payload,
			signature: Sign(payload, testSecret, time.Now().Add(-time.Hour)),
		},
		"malformed json": {
			verifier:  NewVerifier(testSecret),
			payload:   []byte(`{not json`),
			signature: Sign([]byte(`{not json`), testSecret, time.Now()),
		},
		"no secret configured": {
			verifier:  NewVerifier(""),
			payload:   payload,
			signature: Sign(payload, "", time.Now()),
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.verifier.Parse(tc.payload, tc.signature)
			require.ErrorIs(t, err, ErrSignatureInvalid)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "checkout.session.completed", KindCheckoutSessionCompleted.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}

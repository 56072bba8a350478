package webhook

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

// Sign builds a signature header for payload the way Stripe does, so captured
// events can be replayed against a local server.
func Sign(payload []byte, secret string, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}

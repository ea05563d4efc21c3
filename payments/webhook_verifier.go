package payments

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	// ErrSignatureInvalid means the delivery failed HMAC verification or its
	// timestamp fell outside the tolerance window. Nothing about the payload
	// can be trusted, so no state is touched and no audit entry is written.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	// ErrEventMalformed means the signature checked out but the payload
	// could not be decoded into an event envelope.
	ErrEventMalformed = errors.New("webhook event malformed")
)

// SignatureVerifier validates a raw webhook delivery and returns the decoded
// Stripe event envelope.
type SignatureVerifier interface {
	Verify(payload []byte, sigHeader string) (stripe.Event, error)
}

type stripeVerifier struct {
	secret string
}

// NewSignatureVerifier verifies deliveries against the endpoint's signing
// secret using Stripe's timestamped HMAC scheme with the default 5 minute
// tolerance.
func NewSignatureVerifier(secret string) SignatureVerifier {
	return &stripeVerifier{secret: secret}
}

func (v *stripeVerifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) ||
			errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) ||
			errors.Is(err, webhook.ErrTooOld) {
			return stripe.Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrEventMalformed, err)
	}
	return event, nil
}

package payments

import (
	"encoding/json"

	"github.com/stripe/stripe-go/v76"
)

// EventKind is the closed set of Stripe event types this pipeline consumes.
// Wire values outside the set decode into EventUnhandled, which is
// acknowledged and audited but never treated as an error.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventAccountUpdated
	EventAccountDeauthorized
	EventCapabilityUpdated
	EventPersonUpdated
	EventExternalAccountCreated
	EventExternalAccountUpdated
	EventPayoutCreated
	EventPayoutPaid
	EventPayoutFailed
	EventPayoutCanceled
)

var eventKinds = map[string]EventKind{
	"account.updated":                  EventAccountUpdated,
	"account.application.deauthorized": EventAccountDeauthorized,
	"capability.updated":               EventCapabilityUpdated,
	"person.updated":                   EventPersonUpdated,
	"account.external_account.created": EventExternalAccountCreated,
	"account.external_account.updated": EventExternalAccountUpdated,
	"payout.created":                   EventPayoutCreated,
	"payout.paid":                      EventPayoutPaid,
	"payout.failed":                    EventPayoutFailed,
	"payout.canceled":                  EventPayoutCanceled,
}

// KindOf parses a wire event type into an EventKind.
func KindOf(eventType string) EventKind {
	if kind, ok := eventKinds[eventType]; ok {
		return kind
	}
	return EventUnhandled
}

func (k EventKind) String() string {
	for name, kind := range eventKinds {
		if kind == k {
			return name
		}
	}
	return "unhandled"
}

// Event is the verified, decoded envelope handed to the router.
type Event struct {
	ID string
	// Type is the raw wire event type, kept for audit trails and responses.
	Type string
	Kind EventKind
	// AccountID is the connected account the event belongs to, when the
	// delivery carries one.
	AccountID string
	Data      json.RawMessage
}

// DecodeEvent maps a verified Stripe event into the internal envelope.
func DecodeEvent(stripeEvent *stripe.Event) Event {
	ev := Event{
		ID:        stripeEvent.ID,
		Type:      string(stripeEvent.Type),
		Kind:      KindOf(string(stripeEvent.Type)),
		AccountID: stripeEvent.Account,
	}
	if stripeEvent.Data != nil {
		ev.Data = stripeEvent.Data.Raw
	}
	return ev
}

package payments

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/wanjiru254/tutor_connect/audit"
	"github.com/wanjiru254/tutor_connect/models"
)

// handlerTimeout bounds each handler's persistence work so a slow store
// cannot hold the webhook response open indefinitely.
const handlerTimeout = 10 * time.Second

// HandlerResult reports the outcome of one routed handler. A failed result
// is contained: it never becomes a non-2xx response, because the platform
// would retry a delivery that already mutated state.
type HandlerResult struct {
	Success        bool
	Error          string
	ProcessingTime time.Duration
}

type handlerFunc func(ctx context.Context, ev Event) error

// WebhookProcessor verifies, decodes, deduplicates and routes webhook
// deliveries. It is HTTP-free; the fiber handler owns the response codes.
type WebhookProcessor struct {
	verifier SignatureVerifier
	ledger   EventLedger
	audit    audit.Sink
	handlers map[EventKind]handlerFunc
}

func NewWebhookProcessor(verifier SignatureVerifier, ledger EventLedger, reconciler *AccountReconciler, tracker *PayoutTracker, auditSink audit.Sink) *WebhookProcessor {
	return &WebhookProcessor{
		verifier: verifier,
		ledger:   ledger,
		audit:    auditSink,
		handlers: map[EventKind]handlerFunc{
			EventAccountUpdated:         reconciler.HandleAccountUpdated,
			EventAccountDeauthorized:    reconciler.HandleDeauthorized,
			EventCapabilityUpdated:      reconciler.HandleCapabilityUpdated,
			EventPersonUpdated:          reconciler.HandlePersonUpdated,
			EventExternalAccountCreated: reconciler.HandleExternalAccount,
			EventExternalAccountUpdated: reconciler.HandleExternalAccount,
			EventPayoutCreated:          tracker.HandlePayoutCreated,
			EventPayoutPaid:             tracker.HandlePayoutPaid,
			EventPayoutFailed:           tracker.HandlePayoutFailed,
			EventPayoutCanceled:         tracker.HandlePayoutCanceled,
		},
	}
}

// Process runs one delivery through the pipeline. A returned error is
// terminal and pre-state (signature or decode failure); every outcome past
// verification is reported through HandlerResult.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, sigHeader string) (Event, HandlerResult, error) {
	stripeEvent, err := p.verifier.Verify(payload, sigHeader)
	if err != nil {
		return Event{}, HandlerResult{}, err
	}
	ev := DecodeEvent(&stripeEvent)

	ledgerRow := models.WebhookEvent{
		StripeEventID: ev.ID,
		EventType:     ev.Type,
		ReceivedAt:    time.Now(),
	}
	if ev.AccountID != "" {
		ledgerRow.StripeAccountID = &ev.AccountID
	}
	fresh, err := p.ledger.RecordIfAbsent(ctx, &ledgerRow)
	if err != nil {
		// A broken ledger must not drop events; handlers are written to
		// tolerate replays.
		log.Printf("⚠️ Event ledger error for %s, processing anyway: %v", ev.ID, err)
		fresh = true
	}
	if !fresh {
		log.Printf("Duplicate delivery of event %s (%s), ignoring", ev.ID, ev.Type)
		return ev, HandlerResult{Success: true}, nil
	}

	handler, ok := p.handlers[ev.Kind]
	if !ok {
		p.audit.Append(ctx, audit.Entry{
			Action:       "webhook_unhandled",
			Category:     "payments",
			Level:        audit.LevelInfo,
			Message:      fmt.Sprintf("Received unhandled webhook event type %s", ev.Type),
			ResourceType: "webhook_event",
			ResourceID:   ev.ID,
			Metadata:     map[string]interface{}{"event_type": ev.Type, "stripe_account_id": ev.AccountID},
		})
		return ev, HandlerResult{Success: true}, nil
	}

	return ev, p.runGuarded(ctx, ev, handler), nil
}

// runGuarded executes a handler under a local guard: panics and errors become
// a failed HandlerResult instead of escaping to the dispatcher, so one bad
// event cannot affect the others.
func (p *WebhookProcessor) runGuarded(ctx context.Context, ev Event, handler handlerFunc) (result HandlerResult) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("🔥 Handler panic for event %s (%s): %v", ev.ID, ev.Type, r)
			result = HandlerResult{Success: false, Error: fmt.Sprintf("panic: %v", r), ProcessingTime: time.Since(start)}
		}
	}()

	if err := handler(ctx, ev); err != nil {
		log.Printf("Handler for event %s (%s) failed: %v", ev.ID, ev.Type, err)
		return HandlerResult{Success: false, Error: err.Error(), ProcessingTime: time.Since(start)}
	}
	return HandlerResult{Success: true, ProcessingTime: time.Since(start)}
}

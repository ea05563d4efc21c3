package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"

	"github.com/wanjiru254/tutor_connect/audit"
	"github.com/wanjiru254/tutor_connect/models"
	"github.com/wanjiru254/tutor_connect/notifications"
)

// PayoutTracker maintains payout records through the
// scheduled → completed | failed | cancelled state machine.
type PayoutTracker struct {
	Payouts  PayoutStore
	Accounts AccountStore
	Audit    audit.Sink
	Notifier notifications.Dispatcher
}

func NewPayoutTracker(payouts PayoutStore, accounts AccountStore, auditSink audit.Sink, notifier notifications.Dispatcher) *PayoutTracker {
	return &PayoutTracker{Payouts: payouts, Accounts: accounts, Audit: auditSink, Notifier: notifier}
}

// majorUnits converts Stripe's minor-unit amount to major units.
func majorUnits(amount int64) float64 {
	return float64(amount) / 100
}

func decodePayout(ev Event) (*stripe.Payout, error) {
	var payout stripe.Payout
	if err := json.Unmarshal(ev.Data, &payout); err != nil {
		return nil, fmt.Errorf("decode payout object: %w", err)
	}
	return &payout, nil
}

// HandlePayoutCreated records a new scheduled payout. Replayed and
// concurrently duplicated deliveries collapse onto the single existing row.
func (t *PayoutTracker) HandlePayoutCreated(ctx context.Context, ev Event) error {
	stripePayout, err := decodePayout(ev)
	if err != nil {
		return err
	}

	teacher, err := t.Accounts.FindByStripeAccountID(ctx, ev.AccountID)
	if err != nil {
		return fmt.Errorf("look up account %s: %w", ev.AccountID, err)
	}
	if teacher == nil {
		log.Printf("No teacher for Stripe account %s, skipping payout %s", ev.AccountID, stripePayout.ID)
		return nil
	}

	payout := models.Payout{
		StripePayoutID: stripePayout.ID,
		TeacherID:      teacher.UserID,
		Amount:         majorUnits(stripePayout.Amount),
		Currency:       string(stripePayout.Currency),
		Status:         models.PayoutStatusScheduled,
	}
	if stripePayout.ArrivalDate > 0 {
		arrival := time.Unix(stripePayout.ArrivalDate, 0)
		payout.ExpectedArrival = &arrival
	}

	created, err := t.Payouts.CreateIfAbsent(ctx, &payout)
	if err != nil {
		return fmt.Errorf("create payout %s: %w", stripePayout.ID, err)
	}
	if !created {
		log.Printf("Payout %s already recorded, ignoring duplicate delivery", stripePayout.ID)
		return nil
	}

	t.appendTrail(ctx, &payout, "payout_created", map[string]interface{}{
		"stripe_payout_id": stripePayout.ID,
		"amount":           payout.Amount,
		"currency":         payout.Currency,
	})

	t.Notifier.Dispatch(ctx, notifications.Request{
		Type:                "payout_scheduled",
		Priority:            notifications.PriorityNormal,
		UserID:              teacher.UserID,
		UserType:            "teacher",
		Title:               "A payout has been scheduled",
		Body:                fmt.Sprintf("A payout of %.2f %s is on its way to your bank account.", payout.Amount, payout.Currency),
		RelatedResourceType: "payout",
		RelatedResourceID:   stripePayout.ID,
		Metadata:            map[string]interface{}{"amount": payout.Amount, "currency": payout.Currency},
	})
	return nil
}

// HandlePayoutPaid marks a payout completed. An unknown payout id is a skip,
// not an error: paid events can race ahead of a missed created event.
func (t *PayoutTracker) HandlePayoutPaid(ctx context.Context, ev Event) error {
	stripePayout, err := decodePayout(ev)
	if err != nil {
		return err
	}

	payout, err := t.Payouts.FindByStripePayoutID(ctx, stripePayout.ID)
	if err != nil {
		return fmt.Errorf("look up payout %s: %w", stripePayout.ID, err)
	}
	if payout == nil {
		log.Printf("Payout %s not found for paid event, skipping", stripePayout.ID)
		return nil
	}

	now := time.Now()
	processing := now.Sub(payout.CreatedAt).Seconds()
	fields := map[string]interface{}{
		"status":             models.PayoutStatusCompleted,
		"completed_at":       now,
		"actual_arrival":     now,
		"processing_seconds": processing,
	}
	if err := t.Payouts.Update(ctx, payout.ID, fields); err != nil {
		return fmt.Errorf("complete payout %s: %w", stripePayout.ID, err)
	}

	t.appendTrail(ctx, payout, "payout_completed", map[string]interface{}{
		"stripe_payout_id":   stripePayout.ID,
		"processing_seconds": processing,
	})

	t.Notifier.Dispatch(ctx, notifications.Request{
		Type:                "payout_completed",
		Priority:            notifications.PriorityNormal,
		UserID:              payout.TeacherID,
		UserType:            "teacher",
		Title:               "Your payout has arrived",
		Body:                fmt.Sprintf("Your payout of %.2f %s has been deposited.", payout.Amount, payout.Currency),
		RelatedResourceType: "payout",
		RelatedResourceID:   stripePayout.ID,
	})
	return nil
}

// HandlePayoutFailed records the failure, classifies it, and appends an
// attempt to the payout's attempt history.
func (t *PayoutTracker) HandlePayoutFailed(ctx context.Context, ev Event) error {
	stripePayout, err := decodePayout(ev)
	if err != nil {
		return err
	}

	payout, err := t.Payouts.FindByStripePayoutID(ctx, stripePayout.ID)
	if err != nil {
		return fmt.Errorf("look up payout %s: %w", stripePayout.ID, err)
	}
	if payout == nil {
		log.Printf("Payout %s not found for failed event, skipping", stripePayout.ID)
		return nil
	}

	failureCode := string(stripePayout.FailureCode)
	category := ClassifyFailureCode(failureCode)
	reason := stripePayout.FailureMessage
	if reason == "" {
		reason = failureCode
	}

	fields := map[string]interface{}{
		"status":           models.PayoutStatusFailed,
		"failure_reason":   reason,
		"failure_category": category,
	}
	if err := t.Payouts.Update(ctx, payout.ID, fields); err != nil {
		return fmt.Errorf("fail payout %s: %w", stripePayout.ID, err)
	}

	attemptNumber := t.nextAttemptNumber(ctx, payout.ID)
	attempt := models.PayoutAttempt{
		PayoutID:        payout.ID,
		AttemptNumber:   attemptNumber,
		AttemptedAt:     time.Now(),
		Status:          models.PayoutStatusFailed,
		FailureReason:   &reason,
		FailureCategory: &category,
	}
	if err := t.Payouts.AppendAttempt(ctx, &attempt); err != nil {
		log.Printf("🔥 Failed to append attempt for payout %s: %v", stripePayout.ID, err)
	}

	t.appendTrail(ctx, payout, "payout_failed", map[string]interface{}{
		"stripe_payout_id": stripePayout.ID,
		"failure_code":     failureCode,
		"failure_category": category,
		"failure_reason":   reason,
		"attempt_number":   attemptNumber,
	})

	t.Notifier.Dispatch(ctx, notifications.Request{
		Type:                "payout_failed",
		Priority:            notifications.PriorityUrgent,
		UserID:              payout.TeacherID,
		UserType:            "teacher",
		Title:               "Your payout failed",
		Body:                fmt.Sprintf("Your payout of %.2f %s failed: %s. Please check your bank details.", payout.Amount, payout.Currency, reason),
		RelatedResourceType: "payout",
		RelatedResourceID:   stripePayout.ID,
		Metadata:            map[string]interface{}{"failure_category": category, "amount": payout.Amount},
	})
	return nil
}

// HandlePayoutCanceled marks a payout cancelled. Unknown payouts are skipped.
func (t *PayoutTracker) HandlePayoutCanceled(ctx context.Context, ev Event) error {
	stripePayout, err := decodePayout(ev)
	if err != nil {
		return err
	}

	payout, err := t.Payouts.FindByStripePayoutID(ctx, stripePayout.ID)
	if err != nil {
		return fmt.Errorf("look up payout %s: %w", stripePayout.ID, err)
	}
	if payout == nil {
		log.Printf("Payout %s not found for canceled event, skipping", stripePayout.ID)
		return nil
	}

	if err := t.Payouts.Update(ctx, payout.ID, map[string]interface{}{
		"status": models.PayoutStatusCancelled,
	}); err != nil {
		return fmt.Errorf("cancel payout %s: %w", stripePayout.ID, err)
	}

	t.appendTrail(ctx, payout, "payout_cancelled", map[string]interface{}{
		"stripe_payout_id": stripePayout.ID,
	})
	return nil
}

func (t *PayoutTracker) nextAttemptNumber(ctx context.Context, payoutID uuid.UUID) int {
	count, err := t.Payouts.CountAttempts(ctx, payoutID)
	if err != nil {
		log.Printf("Could not count attempts for payout %s: %v", payoutID, err)
		return 1
	}
	return int(count) + 1
}

func (t *PayoutTracker) appendTrail(ctx context.Context, payout *models.Payout, action string, details map[string]interface{}) {
	entry := models.PayoutAuditEntry{
		PayoutID: payout.ID,
		Action:   action,
		Details:  models.JSONMap(details),
	}
	if err := t.Payouts.AppendAudit(ctx, &entry); err != nil {
		log.Printf("🔥 Failed to append payout audit entry %q for payout %s: %v", action, payout.StripePayoutID, err)
	}

	userID := payout.TeacherID
	t.Audit.Append(ctx, audit.Entry{
		Action:       action,
		Category:     "payments",
		Level:        audit.LevelInfo,
		Message:      fmt.Sprintf("Payout event %s for payout %s", action, payout.StripePayoutID),
		UserID:       &userID,
		ResourceType: "payout",
		ResourceID:   payout.StripePayoutID,
		Metadata:     details,
	})
}

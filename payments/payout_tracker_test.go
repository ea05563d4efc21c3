package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanjiru254/tutor_connect/models"
	"github.com/wanjiru254/tutor_connect/notifications"
)

func payoutEvent(t *testing.T, kind EventKind, eventType, accountID string, payout map[string]interface{}) Event {
	t.Helper()
	data, err := json.Marshal(payout)
	require.NoError(t, err)
	return Event{
		ID:        fmt.Sprintf("evt_%s_%s", eventType, payout["id"]),
		Type:      eventType,
		Kind:      kind,
		AccountID: accountID,
		Data:      data,
	}
}

func newTrackerFixture() (*PayoutTracker, *fakePayoutStore, *fakeAccountStore, *fakeNotifier, *models.Teacher) {
	teacher := testTeacher("acct_po", models.ConnectStatusConnected)
	accounts := newFakeAccountStore(teacher)
	payouts := newFakePayoutStore()
	notifier := &fakeNotifier{}
	tracker := NewPayoutTracker(payouts, accounts, &fakeSink{}, notifier)
	return tracker, payouts, accounts, notifier, teacher
}

func TestHandlePayoutCreated(t *testing.T) {
	tracker, payouts, _, notifier, teacher := newTrackerFixture()

	ev := payoutEvent(t, EventPayoutCreated, "payout.created", "acct_po", map[string]interface{}{
		"id":       "po_1",
		"object":   "payout",
		"amount":   12345,
		"currency": "usd",
	})
	require.NoError(t, tracker.HandlePayoutCreated(context.Background(), ev))

	payout, err := payouts.FindByStripePayoutID(context.Background(), "po_1")
	require.NoError(t, err)
	require.NotNil(t, payout)
	assert.Equal(t, 123.45, payout.Amount, "minor units convert to major units")
	assert.Equal(t, "usd", payout.Currency)
	assert.Equal(t, models.PayoutStatusScheduled, payout.Status)
	assert.Equal(t, teacher.UserID, payout.TeacherID)

	require.Len(t, payouts.audits, 1)
	assert.Equal(t, "payout_created", payouts.audits[0].Action)
	require.Len(t, notifier.requests, 1)
	assert.Equal(t, "payout_scheduled", notifier.requests[0].Type)
}

func TestHandlePayoutCreated_Idempotent(t *testing.T) {
	tracker, payouts, _, notifier, _ := newTrackerFixture()

	ev := payoutEvent(t, EventPayoutCreated, "payout.created", "acct_po", map[string]interface{}{
		"id": "po_dup", "object": "payout", "amount": 5000, "currency": "usd",
	})
	require.NoError(t, tracker.HandlePayoutCreated(context.Background(), ev))
	require.NoError(t, tracker.HandlePayoutCreated(context.Background(), ev))

	assert.Equal(t, 1, payouts.creates, "replayed created event must not insert a second row")
	assert.Len(t, payouts.audits, 1)
	assert.Len(t, notifier.requests, 1)
}

func TestHandlePayoutCreated_UnknownAccountIsSkipped(t *testing.T) {
	tracker, payouts, _, notifier, _ := newTrackerFixture()

	ev := payoutEvent(t, EventPayoutCreated, "payout.created", "acct_other", map[string]interface{}{
		"id": "po_orphan", "object": "payout", "amount": 100, "currency": "usd",
	})
	require.NoError(t, tracker.HandlePayoutCreated(context.Background(), ev))
	assert.Equal(t, 0, payouts.creates)
	assert.Empty(t, notifier.requests)
}

func TestHandlePayoutPaid(t *testing.T) {
	tracker, payouts, _, notifier, _ := newTrackerFixture()

	created := payoutEvent(t, EventPayoutCreated, "payout.created", "acct_po", map[string]interface{}{
		"id": "po_2", "object": "payout", "amount": 2000, "currency": "usd",
	})
	require.NoError(t, tracker.HandlePayoutCreated(context.Background(), created))

	paid := payoutEvent(t, EventPayoutPaid, "payout.paid", "acct_po", map[string]interface{}{
		"id": "po_2", "object": "payout", "amount": 2000, "currency": "usd",
	})
	require.NoError(t, tracker.HandlePayoutPaid(context.Background(), paid))

	payout, _ := payouts.FindByStripePayoutID(context.Background(), "po_2")
	require.NotNil(t, payout)
	assert.Equal(t, models.PayoutStatusCompleted, payout.Status)
	assert.NotNil(t, payout.CompletedAt)
	assert.NotNil(t, payout.ActualArrival)
	assert.NotNil(t, payout.ProcessingSeconds)

	require.Len(t, payouts.audits, 2)
	assert.Equal(t, "payout_completed", payouts.audits[1].Action)
	require.Len(t, notifier.requests, 2)
	assert.Equal(t, "payout_completed", notifier.requests[1].Type)
}

func TestHandlePayoutPaid_UnknownPayoutIsSkipped(t *testing.T) {
	tracker, payouts, _, notifier, _ := newTrackerFixture()

	paid := payoutEvent(t, EventPayoutPaid, "payout.paid", "acct_po", map[string]interface{}{
		"id": "po_never_seen", "object": "payout",
	})
	require.NoError(t, tracker.HandlePayoutPaid(context.Background(), paid))
	assert.Empty(t, payouts.audits)
	assert.Empty(t, notifier.requests)
}

func TestHandlePayoutFailed(t *testing.T) {
	tracker, payouts, _, notifier, _ := newTrackerFixture()

	created := payoutEvent(t, EventPayoutCreated, "payout.created", "acct_po", map[string]interface{}{
		"id": "po_3", "object": "payout", "amount": 9999, "currency": "usd",
	})
	require.NoError(t, tracker.HandlePayoutCreated(context.Background(), created))

	failed := payoutEvent(t, EventPayoutFailed, "payout.failed", "acct_po", map[string]interface{}{
		"id":              "po_3",
		"object":          "payout",
		"amount":          9999,
		"currency":        "usd",
		"failure_code":    "insufficient_funds",
		"failure_message": "Your account has insufficient funds.",
	})
	require.NoError(t, tracker.HandlePayoutFailed(context.Background(), failed))

	payout, _ := payouts.FindByStripePayoutID(context.Background(), "po_3")
	require.NotNil(t, payout)
	assert.Equal(t, models.PayoutStatusFailed, payout.Status)
	require.NotNil(t, payout.FailureCategory)
	assert.Equal(t, FailureInsufficientFunds, *payout.FailureCategory)

	require.Len(t, payouts.attempts, 1)
	assert.Equal(t, 1, payouts.attempts[0].AttemptNumber)
	assert.Equal(t, models.PayoutStatusFailed, payouts.attempts[0].Status)

	require.Len(t, notifier.requests, 2)
	failure := notifier.requests[1]
	assert.Equal(t, "payout_failed", failure.Type)
	assert.Equal(t, notifications.PriorityUrgent, failure.Priority)
	assert.Contains(t, failure.Body, "99.99", "notification reports the amount in major units")
}

func TestHandlePayoutFailed_AttemptNumbersIncrease(t *testing.T) {
	tracker, payouts, _, _, _ := newTrackerFixture()

	created := payoutEvent(t, EventPayoutCreated, "payout.created", "acct_po", map[string]interface{}{
		"id": "po_4", "object": "payout", "amount": 1000, "currency": "usd",
	})
	require.NoError(t, tracker.HandlePayoutCreated(context.Background(), created))

	for i := 0; i < 3; i++ {
		failed := payoutEvent(t, EventPayoutFailed, "payout.failed", "acct_po", map[string]interface{}{
			"id": "po_4", "object": "payout", "failure_code": "account_closed",
		})
		failed.ID = fmt.Sprintf("evt_fail_%d", i)
		require.NoError(t, tracker.HandlePayoutFailed(context.Background(), failed))
	}

	require.Len(t, payouts.attempts, 3)
	assert.Equal(t, 1, payouts.attempts[0].AttemptNumber)
	assert.Equal(t, 2, payouts.attempts[1].AttemptNumber)
	assert.Equal(t, 3, payouts.attempts[2].AttemptNumber)
}

func TestHandlePayoutCanceled(t *testing.T) {
	tracker, payouts, _, _, _ := newTrackerFixture()

	created := payoutEvent(t, EventPayoutCreated, "payout.created", "acct_po", map[string]interface{}{
		"id": "po_5", "object": "payout", "amount": 500, "currency": "usd",
	})
	require.NoError(t, tracker.HandlePayoutCreated(context.Background(), created))

	canceled := payoutEvent(t, EventPayoutCanceled, "payout.canceled", "acct_po", map[string]interface{}{
		"id": "po_5", "object": "payout",
	})
	require.NoError(t, tracker.HandlePayoutCanceled(context.Background(), canceled))

	payout, _ := payouts.FindByStripePayoutID(context.Background(), "po_5")
	require.NotNil(t, payout)
	assert.Equal(t, models.PayoutStatusCancelled, payout.Status)
	assert.Equal(t, "payout_cancelled", payouts.audits[1].Action)
}

func TestHandlePayoutCanceled_UnknownPayoutIsSkipped(t *testing.T) {
	tracker, payouts, _, _, _ := newTrackerFixture()

	canceled := payoutEvent(t, EventPayoutCanceled, "payout.canceled", "acct_po", map[string]interface{}{
		"id": "po_ghost", "object": "payout",
	})
	require.NoError(t, tracker.HandlePayoutCanceled(context.Background(), canceled))
	assert.Empty(t, payouts.audits)
}

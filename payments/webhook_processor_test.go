package payments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/wanjiru254/tutor_connect/models"
)

// fakeVerifier skips real HMAC verification and hands back a canned event,
// or the configured error.
type fakeVerifier struct {
	event stripe.Event
	err   error
}

func (v *fakeVerifier) Verify(_ []byte, _ string) (stripe.Event, error) {
	if v.err != nil {
		return stripe.Event{}, v.err
	}
	return v.event, nil
}

func stripeEventOf(id, eventType, accountID string, raw json.RawMessage) stripe.Event {
	return stripe.Event{
		ID:      id,
		Type:    stripe.EventType(eventType),
		Account: accountID,
		Data:    &stripe.EventData{Raw: raw},
	}
}

func newProcessorFixture(event stripe.Event) (*WebhookProcessor, *fakeAccountStore, *fakePayoutStore, *fakeLedger, *fakeSink, *fakeNotifier) {
	teacher := testTeacher("acct_proc", models.ConnectStatusPending)
	accounts := newFakeAccountStore(teacher)
	payouts := newFakePayoutStore()
	ledger := newFakeLedger()
	sink := &fakeSink{}
	notifier := &fakeNotifier{}
	reconciler := &AccountReconciler{Accounts: accounts, Audit: sink, Notifier: notifier}
	tracker := NewPayoutTracker(payouts, accounts, sink, notifier)
	processor := NewWebhookProcessor(&fakeVerifier{event: event}, ledger, reconciler, tracker, sink)
	return processor, accounts, payouts, ledger, sink, notifier
}

func TestProcess_SignatureFailureIsTerminal(t *testing.T) {
	ledger := newFakeLedger()
	processor := NewWebhookProcessor(&fakeVerifier{err: ErrSignatureInvalid}, ledger,
		&AccountReconciler{}, &PayoutTracker{}, &fakeSink{})

	_, _, err := processor.Process(context.Background(), []byte("{}"), "t=1,v1=bad")
	require.ErrorIs(t, err, ErrSignatureInvalid)
	assert.Empty(t, ledger.seen, "nothing is recorded before verification passes")
}

func TestProcess_UnhandledTypeIsAcknowledgedAndAudited(t *testing.T) {
	event := stripeEventOf("evt_bal", "balance.available", "acct_proc", json.RawMessage(`{}`))
	processor, accounts, _, ledger, sink, _ := newProcessorFixture(event)

	ev, result, err := processor.Process(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, EventUnhandled, ev.Kind)
	assert.Equal(t, 0, accounts.applied)

	require.Len(t, sink.entries, 1)
	assert.Equal(t, "webhook_unhandled", sink.entries[0].Action)
	assert.True(t, ledger.seen["evt_bal"])
}

func TestProcess_DuplicateDeliveryIsIgnored(t *testing.T) {
	raw, err := json.Marshal(map[string]interface{}{
		"id":     "acct_proc",
		"object": "account",
		"capabilities": map[string]string{
			"card_payments": "active",
			"transfers":     "active",
		},
		"payouts_enabled":   true,
		"charges_enabled":   true,
		"details_submitted": true,
	})
	require.NoError(t, err)
	event := stripeEventOf("evt_acct_1", "account.updated", "acct_proc", raw)
	processor, accounts, _, _, _, _ := newProcessorFixture(event)

	_, first, err := processor.Process(context.Background(), raw, "sig")
	require.NoError(t, err)
	require.True(t, first.Success)
	require.Equal(t, 1, accounts.applied)

	_, second, err := processor.Process(context.Background(), raw, "sig")
	require.NoError(t, err)
	assert.True(t, second.Success, "duplicates are acknowledged")
	assert.Equal(t, 1, accounts.applied, "duplicates must not reach the handler")
}

func TestProcess_LedgerErrorStillProcesses(t *testing.T) {
	event := stripeEventOf("evt_person", "person.updated", "acct_proc", json.RawMessage(`{"id":"person_1"}`))
	processor, _, _, ledger, sink, _ := newProcessorFixture(event)
	ledger.err = assert.AnError

	_, result, err := processor.Process(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, sink.entries, "the handler ran despite the broken ledger")
}

func TestProcess_HandlerErrorIsContained(t *testing.T) {
	// A payout event whose data payload is not valid JSON makes the
	// tracker's decode step fail.
	event := stripeEventOf("evt_bad_po", "payout.paid", "acct_proc", json.RawMessage(`{broken`))
	processor, _, _, _, _, _ := newProcessorFixture(event)

	_, result, err := processor.Process(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err, "handler failures never surface as pipeline errors")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "decode payout object")
}

func TestProcess_HandlerPanicIsContained(t *testing.T) {
	event := stripeEventOf("evt_boom", "account.updated", "acct_proc", json.RawMessage(`{"id":"acct_proc"}`))
	processor, _, _, _, _, _ := newProcessorFixture(event)
	processor.handlers[EventAccountUpdated] = func(_ context.Context, _ Event) error {
		panic("store gone")
	}

	_, result, err := processor.Process(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "panic: store gone")
	assert.NotZero(t, result.ProcessingTime)
}

package jobs

import (
	"context"
	"log"
	"time"

	"github.com/wanjiru254/tutor_connect/payments"
)

var (
	syncReconciler *payments.AccountReconciler
	syncAccounts   payments.AccountStore
)

// InitConnectSync wires the re-sync job to the reconciler built at startup.
func InitConnectSync(reconciler *payments.AccountReconciler, accounts payments.AccountStore) {
	syncReconciler = reconciler
	syncAccounts = accounts
}

// SyncPendingConnectAccounts re-fetches accounts that have been stuck in
// pending for over a day without a webhook and runs them through the normal
// reconciliation path. This recovers accounts whose webhooks were missed.
func SyncPendingConnectAccounts() {
	if syncReconciler == nil {
		return
	}
	log.Println("Running job: SyncPendingConnectAccounts...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-24 * time.Hour).Unix()
	teachers, err := syncAccounts.PendingSince(ctx, cutoff)
	if err != nil {
		log.Printf("Error listing stale pending accounts: %v", err)
		return
	}
	if len(teachers) == 0 {
		return
	}

	for i := range teachers {
		teacher := teachers[i]
		acct, err := payments.GetAccount(*teacher.StripeAccountID)
		if err != nil {
			log.Printf("Could not fetch Stripe account %s: %v", *teacher.StripeAccountID, err)
			continue
		}

		if err := syncReconciler.Apply(ctx, &teacher, payments.SnapshotFromAccount(acct), "account_resynced"); err != nil {
			log.Printf("Re-sync failed for Stripe account %s: %v", acct.ID, err)
		}
	}

	log.Printf("✅ Re-synced %d stale pending accounts", len(teachers))
}

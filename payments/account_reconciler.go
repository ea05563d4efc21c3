package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"

	"github.com/wanjiru254/tutor_connect/audit"
	"github.com/wanjiru254/tutor_connect/models"
	"github.com/wanjiru254/tutor_connect/notifications"
)

// debounceWindow suppresses thrashing from near-simultaneous deliveries for
// the same account. Distinct updates inside the window lose to the first one.
const debounceWindow = 5 * time.Second

// AccountSnapshot is the subset of a Stripe account that drives status and
// health derivation.
type AccountSnapshot struct {
	AccountID         string
	DetailsSubmitted  bool
	ChargesEnabled    bool
	PayoutsEnabled    bool
	RequirementErrors []string
	CurrentlyDue      []string
	Capabilities      map[string]string
}

// AccountState is the derived canonical state for a connected account.
type AccountState struct {
	Status      string
	HealthScore int
	Reason      string
}

// DeriveAccountState computes status and health from a snapshot. Rules are
// evaluated in order; the first match wins.
func DeriveAccountState(snap AccountSnapshot) AccountState {
	switch {
	case snap.DetailsSubmitted && snap.ChargesEnabled && snap.PayoutsEnabled:
		return AccountState{Status: models.ConnectStatusConnected, HealthScore: 100, Reason: "charges and payouts enabled"}
	case len(snap.RequirementErrors) > 0:
		return AccountState{Status: models.ConnectStatusRestricted, HealthScore: 25, Reason: "requirement errors: " + strings.Join(snap.RequirementErrors, "; ")}
	case len(snap.CurrentlyDue) > 0:
		return AccountState{Status: models.ConnectStatusPending, HealthScore: 60, Reason: fmt.Sprintf("%d requirements currently due", len(snap.CurrentlyDue))}
	case !snap.DetailsSubmitted:
		return AccountState{Status: models.ConnectStatusPending, HealthScore: 30, Reason: "onboarding details not submitted"}
	default:
		return AccountState{Status: models.ConnectStatusPending, HealthScore: 0, Reason: "awaiting platform review"}
	}
}

// SnapshotFromAccount extracts the reconciliation-relevant fields from a
// Stripe account object.
func SnapshotFromAccount(acct *stripe.Account) AccountSnapshot {
	snap := AccountSnapshot{
		AccountID:        acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		Capabilities:     map[string]string{},
	}
	if acct.Requirements != nil {
		snap.CurrentlyDue = acct.Requirements.CurrentlyDue
		for _, reqErr := range acct.Requirements.Errors {
			snap.RequirementErrors = append(snap.RequirementErrors, fmt.Sprintf("%s: %s", reqErr.Requirement, reqErr.Reason))
		}
	}
	if acct.Capabilities != nil {
		if acct.Capabilities.CardPayments != "" {
			snap.Capabilities["card_payments"] = string(acct.Capabilities.CardPayments)
		}
		if acct.Capabilities.Transfers != "" {
			snap.Capabilities["transfers"] = string(acct.Capabilities.Transfers)
		}
	}
	return snap
}

// AccountReconciler applies verified account lifecycle events to the owning
// teacher's connected-account state.
type AccountReconciler struct {
	Accounts AccountStore
	Audit    audit.Sink
	Notifier notifications.Dispatcher
}

func NewAccountReconciler(accounts AccountStore, auditSink audit.Sink, notifier notifications.Dispatcher) *AccountReconciler {
	return &AccountReconciler{Accounts: accounts, Audit: auditSink, Notifier: notifier}
}

// HandleAccountUpdated reconciles an account.updated event.
func (r *AccountReconciler) HandleAccountUpdated(ctx context.Context, ev Event) error {
	var acct stripe.Account
	if err := json.Unmarshal(ev.Data, &acct); err != nil {
		return fmt.Errorf("decode account object: %w", err)
	}

	teacher, err := r.Accounts.FindByStripeAccountID(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("look up account %s: %w", acct.ID, err)
	}
	if teacher == nil {
		log.Printf("No teacher for Stripe account %s, skipping account update", acct.ID)
		return nil
	}

	if teacher.LastWebhookReceived != nil && time.Since(*teacher.LastWebhookReceived) < debounceWindow {
		log.Printf("Debounced account update for %s (last webhook %s ago)", acct.ID, time.Since(*teacher.LastWebhookReceived))
		return nil
	}

	return r.Apply(ctx, teacher, SnapshotFromAccount(&acct), "account_updated")
}

// Apply derives and persists the canonical state for a snapshot, appends the
// audit entries, and emits at most one status-change notification. It is
// shared between the webhook path and the periodic re-sync job.
func (r *AccountReconciler) Apply(ctx context.Context, teacher *models.Teacher, snap AccountSnapshot, action string) error {
	state := DeriveAccountState(snap)
	now := time.Now()

	fields := map[string]interface{}{
		"connect_status":        state.Status,
		"health_score":          state.HealthScore,
		"connect_verified":      snap.ChargesEnabled && snap.PayoutsEnabled,
		"onboarding_complete":   snap.DetailsSubmitted,
		"requirements":          models.StringList(snap.CurrentlyDue),
		"capabilities":          models.StringMap(snap.Capabilities),
		"last_status_update":    now,
		"last_webhook_received": now,
		"connect_revision":      teacher.ConnectRevision + 1,
	}
	if state.Status == models.ConnectStatusRestricted || state.Status == models.ConnectStatusFailed {
		fields["failure_reason"] = state.Reason
	} else {
		fields["failure_reason"] = nil
	}

	applied, err := r.Accounts.ApplyConnectUpdate(ctx, teacher.UserID, teacher.ConnectRevision, fields)
	if err != nil {
		return fmt.Errorf("apply connect update for %s: %w", snap.AccountID, err)
	}
	if !applied {
		log.Printf("Concurrent update for Stripe account %s, skipping (revision %d moved)", snap.AccountID, teacher.ConnectRevision)
		return nil
	}

	details := map[string]interface{}{
		"stripe_account_id":  snap.AccountID,
		"details_submitted":  snap.DetailsSubmitted,
		"charges_enabled":    snap.ChargesEnabled,
		"payouts_enabled":    snap.PayoutsEnabled,
		"currently_due":      snap.CurrentlyDue,
		"requirement_errors": snap.RequirementErrors,
		"capabilities":       snap.Capabilities,
		"status":             state.Status,
		"health_score":       state.HealthScore,
		"reason":             state.Reason,
	}
	r.appendTrail(ctx, teacher, action, details)

	if state.Status != teacher.ConnectStatus {
		r.Notifier.Dispatch(ctx, statusChangeNotification(teacher, state))
	}
	return nil
}

func statusChangeNotification(teacher *models.Teacher, state AccountState) notifications.Request {
	req := notifications.Request{
		UserID:              teacher.UserID,
		UserType:            "teacher",
		RelatedResourceType: "connected_account",
		Metadata:            map[string]interface{}{"status": state.Status, "health_score": state.HealthScore},
	}
	if teacher.StripeAccountID != nil {
		req.RelatedResourceID = *teacher.StripeAccountID
	}

	switch state.Status {
	case models.ConnectStatusConnected:
		req.Type = "account_verified"
		req.Priority = notifications.PriorityHigh
		req.Title = "Your payout account is verified"
		req.Body = "Your payout account has been verified and payouts are enabled."
	case models.ConnectStatusRestricted:
		req.Type = "account_restricted"
		req.Priority = notifications.PriorityUrgent
		req.Title = "Your payout account is restricted"
		req.Body = "There is a problem with your payout account: " + state.Reason
	case models.ConnectStatusPending:
		req.Type = "requirements_due"
		req.Priority = notifications.PriorityHigh
		req.Title = "Your payout account needs attention"
		req.Body = "Additional information is required to finish setting up your payout account."
	default:
		req.Type = "account_verified"
		req.Priority = notifications.PriorityNormal
		req.Title = "Your payout account was updated"
		req.Body = "Your payout account status is now " + state.Status + "."
	}
	return req
}

// HandleDeauthorized processes an account.application.deauthorized event.
// Deauthorization is terminal and always reported, so it bypasses both the
// debounce window and the revision check.
func (r *AccountReconciler) HandleDeauthorized(ctx context.Context, ev Event) error {
	teacher, err := r.Accounts.FindByStripeAccountID(ctx, ev.AccountID)
	if err != nil {
		return fmt.Errorf("look up account %s: %w", ev.AccountID, err)
	}
	if teacher == nil {
		log.Printf("No teacher for deauthorized Stripe account %s, skipping", ev.AccountID)
		return nil
	}

	now := time.Now()
	reason := "deauthorized by user"
	fields := map[string]interface{}{
		"connect_status":        models.ConnectStatusDisconnected,
		"health_score":          0,
		"connect_verified":      false,
		"capabilities":          models.StringMap{},
		"onboarding_url":        nil,
		"failure_reason":        reason,
		"last_status_update":    now,
		"last_webhook_received": now,
		"connect_revision":      teacher.ConnectRevision + 1,
	}
	if err := r.Accounts.UpdateConnect(ctx, teacher.UserID, fields); err != nil {
		return fmt.Errorf("disconnect account %s: %w", ev.AccountID, err)
	}

	r.appendTrail(ctx, teacher, "account_deauthorized", map[string]interface{}{
		"stripe_account_id": ev.AccountID,
		"reason":            reason,
	})

	r.Notifier.Dispatch(ctx, notifications.Request{
		Type:                "account_disconnected",
		Priority:            notifications.PriorityUrgent,
		UserID:              teacher.UserID,
		UserType:            "teacher",
		Title:               "Your payout account was disconnected",
		Body:                "Your payout account has been disconnected. You will not receive payouts until a new account is connected.",
		RelatedResourceType: "connected_account",
		RelatedResourceID:   ev.AccountID,
	})
	return nil
}

// HandleCapabilityUpdated records a capability.updated event.
func (r *AccountReconciler) HandleCapabilityUpdated(ctx context.Context, ev Event) error {
	var capability stripe.Capability
	if err := json.Unmarshal(ev.Data, &capability); err != nil {
		return fmt.Errorf("decode capability object: %w", err)
	}

	teacher, err := r.Accounts.FindByStripeAccountID(ctx, ev.AccountID)
	if err != nil {
		return fmt.Errorf("look up account %s: %w", ev.AccountID, err)
	}
	if teacher == nil {
		log.Printf("No teacher for Stripe account %s, skipping capability update", ev.AccountID)
		return nil
	}

	capabilities := models.StringMap{}
	for name, status := range teacher.Capabilities {
		capabilities[name] = status
	}
	capabilities[string(capability.ID)] = string(capability.Status)

	now := time.Now()
	fields := map[string]interface{}{
		"capabilities":          capabilities,
		"last_webhook_received": now,
	}
	if err := r.Accounts.UpdateConnect(ctx, teacher.UserID, fields); err != nil {
		return fmt.Errorf("update capability for %s: %w", ev.AccountID, err)
	}

	r.appendTrail(ctx, teacher, "capability_updated", map[string]interface{}{
		"stripe_account_id": ev.AccountID,
		"capability":        string(capability.ID),
		"status":            string(capability.Status),
	})

	switch capability.Status {
	case stripe.CapabilityStatusActive:
		r.Notifier.Dispatch(ctx, capabilityNotification(teacher, &capability, notifications.PriorityNormal,
			"A payout capability is now active"))
	case stripe.CapabilityStatusInactive:
		r.Notifier.Dispatch(ctx, capabilityNotification(teacher, &capability, notifications.PriorityHigh,
			"A payout capability was deactivated"))
	}
	return nil
}

func capabilityNotification(teacher *models.Teacher, capability *stripe.Capability, priority, title string) notifications.Request {
	return notifications.Request{
		Type:                "capability_updated",
		Priority:            priority,
		UserID:              teacher.UserID,
		UserType:            "teacher",
		Title:               title,
		Body:                fmt.Sprintf("The %q capability on your payout account is now %s.", capability.ID, capability.Status),
		RelatedResourceType: "connected_account",
		RelatedResourceID:   string(capability.ID),
	}
}

// HandlePersonUpdated records a person.updated event. Person verification
// changes are audit-only.
func (r *AccountReconciler) HandlePersonUpdated(ctx context.Context, ev Event) error {
	var person stripe.Person
	if err := json.Unmarshal(ev.Data, &person); err != nil {
		return fmt.Errorf("decode person object: %w", err)
	}

	teacher, err := r.Accounts.FindByStripeAccountID(ctx, ev.AccountID)
	if err != nil {
		return fmt.Errorf("look up account %s: %w", ev.AccountID, err)
	}
	if teacher == nil {
		log.Printf("No teacher for Stripe account %s, skipping person update", ev.AccountID)
		return nil
	}

	r.appendTrail(ctx, teacher, "person_updated", map[string]interface{}{
		"stripe_account_id": ev.AccountID,
		"person_id":         person.ID,
	})
	return nil
}

// HandleExternalAccount records creation or update of an external bank or
// card account and notifies the owner.
func (r *AccountReconciler) HandleExternalAccount(ctx context.Context, ev Event) error {
	var external struct {
		ID     string `json:"id"`
		Object string `json:"object"`
		Last4  string `json:"last4"`
	}
	if err := json.Unmarshal(ev.Data, &external); err != nil {
		return fmt.Errorf("decode external account object: %w", err)
	}

	teacher, err := r.Accounts.FindByStripeAccountID(ctx, ev.AccountID)
	if err != nil {
		return fmt.Errorf("look up account %s: %w", ev.AccountID, err)
	}
	if teacher == nil {
		log.Printf("No teacher for Stripe account %s, skipping external account event", ev.AccountID)
		return nil
	}

	action := "external_account_created"
	title := "A bank account was added to your payout account"
	if ev.Kind == EventExternalAccountUpdated {
		action = "external_account_updated"
		title = "A bank account on your payout account was updated"
	}

	r.appendTrail(ctx, teacher, action, map[string]interface{}{
		"stripe_account_id":   ev.AccountID,
		"external_account_id": external.ID,
		"object":              external.Object,
		"last4":               external.Last4,
	})

	r.Notifier.Dispatch(ctx, notifications.Request{
		Type:                "bank_account_updated",
		Priority:            notifications.PriorityNormal,
		UserID:              teacher.UserID,
		UserType:            "teacher",
		Title:               title,
		Body:                fmt.Sprintf("The external account ending in %s was %s.", external.Last4, strings.TrimPrefix(action, "external_account_")),
		RelatedResourceType: "connected_account",
		RelatedResourceID:   ev.AccountID,
	})
	return nil
}

// appendTrail writes the per-teacher audit entry and mirrors it to the
// platform audit sink. Trail failures are logged, never propagated.
func (r *AccountReconciler) appendTrail(ctx context.Context, teacher *models.Teacher, action string, details map[string]interface{}) {
	entry := models.ConnectAuditEntry{
		TeacherID: teacher.UserID,
		Action:    action,
		Details:   models.JSONMap(details),
	}
	if err := r.Accounts.AppendAudit(ctx, &entry); err != nil {
		log.Printf("🔥 Failed to append connect audit entry %q for teacher %s: %v", action, teacher.UserID, err)
	}

	userID := teacher.UserID
	resourceID := ""
	if teacher.StripeAccountID != nil {
		resourceID = *teacher.StripeAccountID
	}
	r.Audit.Append(ctx, audit.Entry{
		Action:       action,
		Category:     "payments",
		Level:        audit.LevelInfo,
		Message:      fmt.Sprintf("Connected account event %s for teacher %s", action, teacher.UserID),
		UserID:       &userID,
		ResourceType: "connected_account",
		ResourceID:   resourceID,
		Metadata:     details,
	})
}

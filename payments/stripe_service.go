package payments

import (
	"fmt"
	"log"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/account"
	"github.com/stripe/stripe-go/v76/accountlink"
	"github.com/stripe/stripe-go/v76/loginlink"

	config "github.com/wanjiru254/tutor_connect/configs"
)

// InitStripe configures the Stripe client from the environment. Must run
// before any Connect API call.
func InitStripe() {
	key := config.Config("STRIPE_SECRET_KEY")
	if key == "" {
		log.Println("⚠️ STRIPE_SECRET_KEY is not set, Stripe API calls will fail")
		return
	}
	stripe.Key = key
	log.Println("✅ Stripe client initialized")
}

// CreateExpressAccount creates the Express account a teacher's payouts flow
// through. The returned account id becomes the teacher's idempotency key for
// all webhook reconciliation.
func CreateExpressAccount(email, country string) (*stripe.Account, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Email:   stripe.String(email),
		Country: stripe.String(country),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	acct, err := account.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stripe account: %w", err)
	}
	return acct, nil
}

// CreateOnboardingLink returns a short-lived URL the teacher visits to
// complete Stripe onboarding.
func CreateOnboardingLink(accountID string) (*stripe.AccountLink, error) {
	frontendURL := config.Config("FRONTEND_BASE_URL")
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(frontendURL + "/teacher/payouts/onboarding/refresh"),
		ReturnURL:  stripe.String(frontendURL + "/teacher/payouts/onboarding/complete"),
		Type:       stripe.String("account_onboarding"),
	}
	link, err := accountlink.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create onboarding link: %w", err)
	}
	return link, nil
}

// CreateLoginLink returns a URL into the Stripe Express dashboard for an
// already-onboarded account.
func CreateLoginLink(accountID string) (*stripe.LoginLink, error) {
	params := &stripe.LoginLinkParams{
		Account: stripe.String(accountID),
	}
	link, err := loginlink.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create login link: %w", err)
	}
	return link, nil
}

// GetAccount fetches the current account snapshot from Stripe. Used by the
// periodic re-sync job to recover from missed webhooks.
func GetAccount(accountID string) (*stripe.Account, error) {
	acct, err := account.GetByID(accountID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Stripe account %s: %w", accountID, err)
	}
	return acct, nil
}

package billing

import (
	"context"
)

// Provider operation names, used for metrics labels and fault injection in
// the fake provider.
const (
	OpCreateCustomer     = "create_customer"
	OpGetCustomer        = "get_customer"
	OpCreateCard         = "create_card"
	OpDeleteCard         = "delete_card"
	OpCreateSubscription = "create_subscription"
	OpGetSubscription    = "get_subscription"
	OpUpdateSubscription = "update_subscription"
	OpCancelSubscription = "cancel_subscription"
	OpListCharges        = "list_charges"
)

// Provider defines the interface to a remote billing provider. RESTProvider
// talks to a real payment API; FakeProvider backs tests and local runs.
//
// Lookups return (nil, nil) when the remote object does not exist, mirroring
// how repositories report absence. Failed requests return *ProviderError.
type Provider interface {
	// Customer management
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)

	// Payment source management
	CreateCard(ctx context.Context, customerID string, params CardParams) (*Card, error)
	DeleteCard(ctx context.Context, customerID, cardID string) error

	// Subscription management
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string, endOfPeriod bool) (*Subscription, error)

	// Charge history
	ListCharges(ctx context.Context, customerID string, limit int) ([]Charge, error)
}

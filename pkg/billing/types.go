package billing

import (
	"time"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
)

// Customer represents a customer record held by the billing provider
type Customer struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Description     string `json:"description,omitempty"`
	DefaultSourceID string `json:"default_source_id,omitempty"`
	Cards           []Card `json:"cards,omitempty"`
}

// DefaultCard returns the customer's default payment card, or nil when no
// default source is set.
func (c *Customer) DefaultCard() *Card {
	if c == nil || c.DefaultSourceID == "" {
		return nil
	}
	for i := range c.Cards {
		if c.Cards[i].ID == c.DefaultSourceID {
			return &c.Cards[i]
		}
	}
	return nil
}

// Card represents a payment card attached to a customer
type Card struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// Subscription represents a subscription held by the billing provider
type Subscription struct {
	ID                string             `json:"id"`
	CustomerID        string             `json:"customer_id"`
	Status            SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
	CurrentPeriodEnd  time.Time          `json:"current_period_end"`
	CanceledAt        *time.Time         `json:"canceled_at,omitempty"`
	TrialEnd          *time.Time         `json:"trial_end,omitempty"`
	Items             []SubscriptionItem `json:"items"`
}

// IsCanceled reports whether the subscription has been fully canceled
func (s *Subscription) IsCanceled() bool {
	return s != nil && s.Status == SubscriptionStatusCanceled
}

// SubscriptionItem is one line of a subscription: a price and a quantity
type SubscriptionItem struct {
	ID       string `json:"id,omitempty"`
	PriceID  string `json:"price_id"`
	Quantity int    `json:"quantity"`
}

// ChargeStatus represents the status of a charge
type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusFailed    ChargeStatus = "failed"
)

// Charge represents a payment charge recorded by the billing provider
type Charge struct {
	ID          string       `json:"id"`
	AmountCents int64        `json:"amount_cents"`
	Currency    string       `json:"currency"`
	Status      ChargeStatus `json:"status"`
	Refunded    bool         `json:"refunded"`
	CreatedAt   time.Time    `json:"created_at"`
}

// PaymentSource is the presentation view of the default payment card. Card
// IDs stay provider-internal.
type PaymentSource struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// Snapshot aggregates an organization's remote billing state. Sections whose
// backing reference is missing are nil or empty rather than errors.
type Snapshot struct {
	PaymentSource *PaymentSource `json:"payment_source,omitempty"`
	Subscription  *Subscription  `json:"subscription,omitempty"`
	Charges       []Charge       `json:"charges,omitempty"`
}

// CreateCustomerParams represents request to create a customer
type CreateCustomerParams struct {
	Email       string
	Description string
	// CardToken optionally attaches an initial default payment source.
	CardToken string
}

// CardParams represents request to attach a card to a customer
type CardParams struct {
	Token      string
	SetDefault bool
}

// SubscriptionItemParams is one requested subscription line
type SubscriptionItemParams struct {
	PriceID  string
	Quantity int
}

// CreateSubscriptionParams represents request to create a subscription
type CreateSubscriptionParams struct {
	CustomerID string
	Items      []SubscriptionItemParams
	TrialDays  int
}

// UpdateSubscriptionParams represents request to update a subscription. Items
// replace the subscription's lines wholesale.
type UpdateSubscriptionParams struct {
	Items []SubscriptionItemParams
}

// EnsureCustomerParams represents request to resolve or create a customer
type EnsureCustomerParams struct {
	// CustomerID is the stored provider reference; empty when the
	// organization has never had a customer.
	CustomerID  string
	Email       string
	Description string
	// CardToken seeds the default payment source when a customer has to be
	// created.
	CardToken string
}

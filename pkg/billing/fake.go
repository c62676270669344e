package billing

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FakeProvider is an in-memory Provider for tests and local development. It
// models the provider-side state machine: customers with attached cards,
// subscriptions with line items, and charge history. Failures can be planted
// per operation with FailNext.
type FakeProvider struct {
	mu            sync.Mutex
	customers     map[string]*Customer
	subscriptions map[string]*Subscription
	charges       map[string][]Charge
	nextID        int
	failures      map[string][]error
	calls         map[string]int

	// Now supplies timestamps; override for deterministic tests.
	Now func() time.Time

	// ConfirmCancellations, when false, makes CancelSubscription return the
	// subscription unchanged, simulating a provider that accepts the request
	// without applying it.
	ConfirmCancellations bool
}

// NewFakeProvider creates a new FakeProvider
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		customers:            make(map[string]*Customer),
		subscriptions:        make(map[string]*Subscription),
		charges:              make(map[string][]Charge),
		failures:             make(map[string][]error),
		calls:                make(map[string]int),
		Now:                  time.Now,
		ConfirmCancellations: true,
	}
}

// FailNext queues an error for the next call of the given operation
func (f *FakeProvider) FailNext(operation string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[operation] = append(f.failures[operation], err)
}

// Calls returns how many times the given operation has been invoked
func (f *FakeProvider) Calls(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation]
}

// begin records the call and pops any planted failure. Callers hold the lock.
func (f *FakeProvider) begin(operation string) error {
	f.calls[operation]++
	if queue := f.failures[operation]; len(queue) > 0 {
		err := queue[0]
		f.failures[operation] = queue[1:]
		return err
	}
	return nil
}

func (f *FakeProvider) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_fake_%d", prefix, f.nextID)
}

func (f *FakeProvider) now() time.Time {
	if f.Now != nil {
		return f.Now().UTC()
	}
	return time.Now().UTC()
}

// cardFromToken derives card details from a tokenized card, so tests can
// steer brand and last4 through the token value.
func (f *FakeProvider) cardFromToken(token string) Card {
	brand := "Visa"
	if strings.Contains(strings.ToLower(token), "mastercard") {
		brand = "MasterCard"
	}
	last4 := "4242"
	if len(token) >= 4 {
		tail := token[len(token)-4:]
		if _, err := strconv.Atoi(tail); err == nil {
			last4 = tail
		}
	}
	expiry := f.now().AddDate(3, 0, 0)
	return Card{
		Brand:    brand,
		Last4:    last4,
		ExpMonth: int(expiry.Month()),
		ExpYear:  expiry.Year(),
	}
}

func notFoundError(operation, message string) *ProviderError {
	return &ProviderError{
		Operation:  operation,
		StatusCode: http.StatusNotFound,
		Code:       "resource_missing",
		Message:    message,
	}
}

// CreateCustomer creates a customer
func (f *FakeProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpCreateCustomer); err != nil {
		return nil, err
	}

	customer := &Customer{
		ID:          f.newID("cus"),
		Email:       params.Email,
		Description: params.Description,
	}
	if params.CardToken != "" {
		card := f.cardFromToken(params.CardToken)
		card.ID = f.newID("card")
		customer.Cards = append(customer.Cards, card)
		customer.DefaultSourceID = card.ID
	}
	f.customers[customer.ID] = customer
	return copyCustomer(customer), nil
}

// GetCustomer retrieves a customer, returning (nil, nil) when absent
func (f *FakeProvider) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpGetCustomer); err != nil {
		return nil, err
	}

	customer, ok := f.customers[customerID]
	if !ok {
		return nil, nil
	}
	return copyCustomer(customer), nil
}

// CreateCard attaches a card to a customer
func (f *FakeProvider) CreateCard(ctx context.Context, customerID string, params CardParams) (*Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpCreateCard); err != nil {
		return nil, err
	}

	customer, ok := f.customers[customerID]
	if !ok {
		return nil, notFoundError(OpCreateCard, fmt.Sprintf("no such customer: %s", customerID))
	}

	card := f.cardFromToken(params.Token)
	card.ID = f.newID("card")
	customer.Cards = append(customer.Cards, card)
	if params.SetDefault {
		customer.DefaultSourceID = card.ID
	}

	created := card
	return &created, nil
}

// DeleteCard detaches a card. Deleting an absent card is not an error.
func (f *FakeProvider) DeleteCard(ctx context.Context, customerID, cardID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpDeleteCard); err != nil {
		return err
	}

	customer, ok := f.customers[customerID]
	if !ok {
		return notFoundError(OpDeleteCard, fmt.Sprintf("no such customer: %s", customerID))
	}

	for i := range customer.Cards {
		if customer.Cards[i].ID == cardID {
			customer.Cards = append(customer.Cards[:i], customer.Cards[i+1:]...)
			break
		}
	}
	if customer.DefaultSourceID == cardID {
		customer.DefaultSourceID = ""
	}
	return nil
}

// CreateSubscription creates a subscription
func (f *FakeProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpCreateSubscription); err != nil {
		return nil, err
	}

	if _, ok := f.customers[params.CustomerID]; !ok {
		return nil, notFoundError(OpCreateSubscription, fmt.Sprintf("no such customer: %s", params.CustomerID))
	}

	now := f.now()
	sub := &Subscription{
		ID:               f.newID("sub"),
		CustomerID:       params.CustomerID,
		Status:           SubscriptionStatusActive,
		CurrentPeriodEnd: now.AddDate(0, 1, 0),
	}
	if params.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, params.TrialDays)
		sub.Status = SubscriptionStatusTrialing
		sub.TrialEnd = &trialEnd
	}
	for _, item := range params.Items {
		sub.Items = append(sub.Items, SubscriptionItem{
			ID:       f.newID("si"),
			PriceID:  item.PriceID,
			Quantity: item.Quantity,
		})
	}
	f.subscriptions[sub.ID] = sub
	return copySubscription(sub), nil
}

// GetSubscription retrieves a subscription, returning (nil, nil) when absent
func (f *FakeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpGetSubscription); err != nil {
		return nil, err
	}

	sub, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, nil
	}
	return copySubscription(sub), nil
}

// UpdateSubscription replaces a subscription's line items
func (f *FakeProvider) UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpUpdateSubscription); err != nil {
		return nil, err
	}

	sub, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, nil
	}

	sub.Items = nil
	for _, item := range params.Items {
		sub.Items = append(sub.Items, SubscriptionItem{
			ID:       f.newID("si"),
			PriceID:  item.PriceID,
			Quantity: item.Quantity,
		})
	}
	return copySubscription(sub), nil
}

// CancelSubscription cancels a subscription immediately or at period end
func (f *FakeProvider) CancelSubscription(ctx context.Context, subscriptionID string, endOfPeriod bool) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpCancelSubscription); err != nil {
		return nil, err
	}

	sub, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, nil
	}

	if f.ConfirmCancellations {
		if endOfPeriod {
			sub.CancelAtPeriodEnd = true
		} else {
			canceledAt := f.now()
			sub.Status = SubscriptionStatusCanceled
			sub.CanceledAt = &canceledAt
		}
	}
	return copySubscription(sub), nil
}

// ListCharges lists a customer's charges, newest first
func (f *FakeProvider) ListCharges(ctx context.Context, customerID string, limit int) ([]Charge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(OpListCharges); err != nil {
		return nil, err
	}

	charges := make([]Charge, len(f.charges[customerID]))
	copy(charges, f.charges[customerID])
	sort.Slice(charges, func(i, j int) bool {
		return charges[i].CreatedAt.After(charges[j].CreatedAt)
	})
	if limit > 0 && len(charges) > limit {
		charges = charges[:limit]
	}
	return charges, nil
}

// AddCharge records a charge against a customer, for seeding test state
func (f *FakeProvider) AddCharge(customerID string, charge Charge) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if charge.ID == "" {
		charge.ID = f.newID("ch")
	}
	if charge.CreatedAt.IsZero() {
		charge.CreatedAt = f.now()
	}
	f.charges[customerID] = append(f.charges[customerID], charge)
}

// Ping reports whether the provider is reachable. The fake is always
// reachable unless a failure was planted.
func (f *FakeProvider) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begin("ping")
}

func copyCustomer(customer *Customer) *Customer {
	copied := *customer
	copied.Cards = make([]Card, len(customer.Cards))
	copy(copied.Cards, customer.Cards)
	return &copied
}

func copySubscription(sub *Subscription) *Subscription {
	copied := *sub
	copied.Items = make([]SubscriptionItem, len(sub.Items))
	copy(copied.Items, sub.Items)
	if sub.CanceledAt != nil {
		canceledAt := *sub.CanceledAt
		copied.CanceledAt = &canceledAt
	}
	if sub.TrialEnd != nil {
		trialEnd := *sub.TrialEnd
		copied.TrialEnd = &trialEnd
	}
	return &copied
}

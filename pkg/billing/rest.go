package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RESTProvider implements Provider against a card-payment REST API. Requests
// are form-encoded with bearer authentication and responses are JSON, the
// shape used by Stripe-compatible APIs.
type RESTProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRESTProvider creates a new RESTProvider. A zero timeout defaults to 30
// seconds.
func NewRESTProvider(baseURL, apiKey string, timeout time.Duration) *RESTProvider {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RESTProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// do performs one API request. A nil out skips response decoding. Non-2xx
// responses become *ProviderError; transport failures are marked unavailable.
func (p *RESTProvider) do(ctx context.Context, operation, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ProviderError{
			Operation:   operation,
			Message:     err.Error(),
			Unavailable: true,
			Err:         err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p.errorFromResponse(operation, resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", operation, err)
		}
	}
	return nil
}

// errorFromResponse builds a ProviderError from a non-2xx response,
// preferring the provider's error envelope over the raw body.
func (p *RESTProvider) errorFromResponse(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	providerErr := &ProviderError{
		Operation:   operation,
		StatusCode:  resp.StatusCode,
		Message:     strings.TrimSpace(string(body)),
		Unavailable: resp.StatusCode >= 500,
	}

	var envelope struct {
		Error struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		providerErr.Code = envelope.Error.Code
		providerErr.Message = envelope.Error.Message
	}
	return providerErr
}

// isNotFound reports whether err is a provider 404
func isNotFound(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.StatusCode == http.StatusNotFound
}

// CreateCustomer creates a customer
func (p *RESTProvider) CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error) {
	form := url.Values{}
	form.Set("email", params.Email)
	if params.Description != "" {
		form.Set("description", params.Description)
	}
	if params.CardToken != "" {
		form.Set("source", params.CardToken)
	}

	var payload customerPayload
	if err := p.do(ctx, OpCreateCustomer, http.MethodPost, "/v1/customers", form, &payload); err != nil {
		return nil, err
	}
	return payload.toCustomer(), nil
}

// GetCustomer retrieves a customer, returning (nil, nil) when it does not
// exist remotely.
func (p *RESTProvider) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var payload customerPayload
	err := p.do(ctx, OpGetCustomer, http.MethodGet, "/v1/customers/"+url.PathEscape(customerID), nil, &payload)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload.toCustomer(), nil
}

// CreateCard attaches a tokenized card to a customer
func (p *RESTProvider) CreateCard(ctx context.Context, customerID string, params CardParams) (*Card, error) {
	form := url.Values{}
	form.Set("source", params.Token)

	var payload cardPayload
	customerPath := "/v1/customers/" + url.PathEscape(customerID)
	if err := p.do(ctx, OpCreateCard, http.MethodPost, customerPath+"/sources", form, &payload); err != nil {
		return nil, err
	}

	if params.SetDefault {
		defaultForm := url.Values{}
		defaultForm.Set("default_source", payload.ID)
		if err := p.do(ctx, OpCreateCard, http.MethodPost, customerPath, defaultForm, nil); err != nil {
			return nil, fmt.Errorf("failed to set default source: %w", err)
		}
	}

	card := payload.toCard()
	return &card, nil
}

// DeleteCard detaches a card from a customer. Deleting a card that is
// already gone is not an error.
func (p *RESTProvider) DeleteCard(ctx context.Context, customerID, cardID string) error {
	path := "/v1/customers/" + url.PathEscape(customerID) + "/sources/" + url.PathEscape(cardID)
	err := p.do(ctx, OpDeleteCard, http.MethodDelete, path, nil, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// CreateSubscription creates a subscription
func (p *RESTProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	form := url.Values{}
	form.Set("customer", params.CustomerID)
	encodeItems(form, params.Items)
	if params.TrialDays > 0 {
		form.Set("trial_period_days", strconv.Itoa(params.TrialDays))
	}

	var payload subscriptionPayload
	if err := p.do(ctx, OpCreateSubscription, http.MethodPost, "/v1/subscriptions", form, &payload); err != nil {
		return nil, err
	}
	return payload.toSubscription(), nil
}

// GetSubscription retrieves a subscription, returning (nil, nil) when it
// does not exist remotely.
func (p *RESTProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var payload subscriptionPayload
	err := p.do(ctx, OpGetSubscription, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, &payload)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload.toSubscription(), nil
}

// UpdateSubscription replaces a subscription's line items
func (p *RESTProvider) UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateSubscriptionParams) (*Subscription, error) {
	form := url.Values{}
	encodeItems(form, params.Items)

	var payload subscriptionPayload
	err := p.do(ctx, OpUpdateSubscription, http.MethodPost, "/v1/subscriptions/"+url.PathEscape(subscriptionID), form, &payload)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload.toSubscription(), nil
}

// CancelSubscription cancels a subscription. Immediate cancellation deletes
// the subscription; end-of-period cancellation flags it instead.
func (p *RESTProvider) CancelSubscription(ctx context.Context, subscriptionID string, endOfPeriod bool) (*Subscription, error) {
	path := "/v1/subscriptions/" + url.PathEscape(subscriptionID)

	var payload subscriptionPayload
	var err error
	if endOfPeriod {
		form := url.Values{}
		form.Set("cancel_at_period_end", "true")
		err = p.do(ctx, OpCancelSubscription, http.MethodPost, path, form, &payload)
	} else {
		err = p.do(ctx, OpCancelSubscription, http.MethodDelete, path, nil, &payload)
	}
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload.toSubscription(), nil
}

// ListCharges lists a customer's most recent charges, newest first
func (p *RESTProvider) ListCharges(ctx context.Context, customerID string, limit int) ([]Charge, error) {
	query := url.Values{}
	query.Set("customer", customerID)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var payload struct {
		Data []chargePayload `json:"data"`
	}
	err := p.do(ctx, OpListCharges, http.MethodGet, "/v1/charges?"+query.Encode(), nil, &payload)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	charges := make([]Charge, 0, len(payload.Data))
	for _, c := range payload.Data {
		charges = append(charges, c.toCharge())
	}
	return charges, nil
}

// Ping performs a minimal authenticated request, for health checks
func (p *RESTProvider) Ping(ctx context.Context) error {
	return p.do(ctx, "ping", http.MethodGet, "/v1/customers?limit=1", nil, nil)
}

// encodeItems flattens subscription line items into indexed form fields
func encodeItems(form url.Values, items []SubscriptionItemParams) {
	for i, item := range items {
		form.Set(fmt.Sprintf("items[%d][price]", i), item.PriceID)
		form.Set(fmt.Sprintf("items[%d][quantity]", i), strconv.Itoa(item.Quantity))
	}
}

type customerPayload struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Description   string `json:"description"`
	DefaultSource string `json:"default_source"`
	Sources       struct {
		Data []cardPayload `json:"data"`
	} `json:"sources"`
}

func (p *customerPayload) toCustomer() *Customer {
	customer := &Customer{
		ID:              p.ID,
		Email:           p.Email,
		Description:     p.Description,
		DefaultSourceID: p.DefaultSource,
	}
	for _, c := range p.Sources.Data {
		customer.Cards = append(customer.Cards, c.toCard())
	}
	return customer
}

type cardPayload struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

func (p *cardPayload) toCard() Card {
	return Card{
		ID:       p.ID,
		Brand:    p.Brand,
		Last4:    p.Last4,
		ExpMonth: p.ExpMonth,
		ExpYear:  p.ExpYear,
	}
}

type subscriptionPayload struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CanceledAt        *int64 `json:"canceled_at"`
	TrialEnd          *int64 `json:"trial_end"`
	Items             struct {
		Data []subscriptionItemPayload `json:"data"`
	} `json:"items"`
}

func (p *subscriptionPayload) toSubscription() *Subscription {
	sub := &Subscription{
		ID:                p.ID,
		CustomerID:        p.Customer,
		Status:            SubscriptionStatus(p.Status),
		CancelAtPeriodEnd: p.CancelAtPeriodEnd,
		CurrentPeriodEnd:  time.Unix(p.CurrentPeriodEnd, 0).UTC(),
		CanceledAt:        unixTime(p.CanceledAt),
		TrialEnd:          unixTime(p.TrialEnd),
	}
	for _, item := range p.Items.Data {
		sub.Items = append(sub.Items, SubscriptionItem{
			ID:       item.ID,
			PriceID:  item.Price.ID,
			Quantity: item.Quantity,
		})
	}
	return sub
}

type subscriptionItemPayload struct {
	ID    string `json:"id"`
	Price struct {
		ID string `json:"id"`
	} `json:"price"`
	Quantity int `json:"quantity"`
}

type chargePayload struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Refunded bool   `json:"refunded"`
	Created  int64  `json:"created"`
}

func (p *chargePayload) toCharge() Charge {
	return Charge{
		ID:          p.ID,
		AmountCents: p.Amount,
		Currency:    p.Currency,
		Status:      ChargeStatus(p.Status),
		Refunded:    p.Refunded,
		CreatedAt:   time.Unix(p.Created, 0).UTC(),
	}
}

func unixTime(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}

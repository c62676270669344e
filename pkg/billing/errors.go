package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSubscription indicates the organization has no subscription to
	// act on, locally or remotely.
	ErrNoSubscription = errors.New("no subscription found")

	// ErrSubscriptionCanceled indicates the subscription was already
	// canceled before the requested cancellation.
	ErrSubscriptionCanceled = errors.New("subscription is already canceled")

	// ErrCancelUnconfirmed indicates the provider accepted a cancellation
	// request but the returned subscription reports neither a canceled
	// status nor a scheduled period-end cancellation.
	ErrCancelUnconfirmed = errors.New("provider did not confirm the cancellation")

	// ErrCustomerNotFound indicates a stored customer reference no longer
	// resolves at the provider.
	ErrCustomerNotFound = errors.New("billing customer not found")
)

// ProviderError represents a failed billing provider request
type ProviderError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
	// Unavailable marks transport failures and provider 5xx responses,
	// where retrying later may succeed.
	Unavailable bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("billing provider %s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("billing provider %s failed: %s", e.Operation, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderUnavailable checks if an error is a transient provider failure
func IsProviderUnavailable(err error) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.Unavailable
}

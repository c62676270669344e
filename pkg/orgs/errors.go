package orgs

import (
	"errors"
	"fmt"
)

// BadRequestError is a business-rule violation. Reason is safe to show to the
// end user; Limit carries the violated numeric ceiling when one applies.
type BadRequestError struct {
	Reason string
	Limit  int
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

// IsBadRequest reports whether err is a business-rule violation.
func IsBadRequest(err error) bool {
	var badRequestErr *BadRequestError
	return errors.As(err, &badRequestErr)
}

// IsNotFound reports whether err reports a missing entity.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

func badRequest(reason string) *BadRequestError {
	return &BadRequestError{Reason: reason}
}

func badRequestLimit(limit int, format string, args ...interface{}) *BadRequestError {
	return &BadRequestError{Reason: fmt.Sprintf(format, args...), Limit: limit}
}

func notFound(entity string) *NotFoundError {
	return &NotFoundError{Entity: entity}
}

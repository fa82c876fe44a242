package services

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// ServiceError represents a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// CheckoutErrorKind classifies why a checkout attempt ended.
type CheckoutErrorKind string

const (
	KindInsufficientBalance   CheckoutErrorKind = "insufficient_balance"
	KindProductUnavailable    CheckoutErrorKind = "product_unavailable"
	KindInsufficientInventory CheckoutErrorKind = "insufficient_inventory"
	KindEmptyCart             CheckoutErrorKind = "empty_cart"
	KindInvalidQuantity       CheckoutErrorKind = "invalid_quantity"
	KindAccountNotFound       CheckoutErrorKind = "account_not_found"
	KindInProgress            CheckoutErrorKind = "checkout_in_progress"
	KindInternal              CheckoutErrorKind = "checkout_failed"
)

const genericCheckoutMessage = "Checkout failed"

// CheckoutError is the single terminal error a failed checkout reports.
type CheckoutError struct {
	Kind      CheckoutErrorKind
	Message   string
	ProductID uuid.UUID
	cause     error
}

func (e *CheckoutError) Error() string {
	return e.Message
}

func (e *CheckoutError) Unwrap() error {
	return e.cause
}

// Is matches on Kind so callers can use errors.Is(err, ErrInsufficientBalance).
func (e *CheckoutError) Is(target error) bool {
	t, ok := target.(*CheckoutError)
	return ok && t.Kind == e.Kind
}

func (e *CheckoutError) StatusCode() int {
	switch e.Kind {
	case KindInsufficientBalance:
		return http.StatusPaymentRequired
	case KindProductUnavailable, KindInsufficientInventory, KindInProgress:
		return http.StatusConflict
	case KindEmptyCart, KindInvalidQuantity:
		return http.StatusBadRequest
	case KindAccountNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the same request may succeed later without the
// buyer changing anything.
func (e *CheckoutError) Retryable() bool {
	return e.Kind == KindInternal || e.Kind == KindInProgress
}

var (
	ErrInsufficientBalance   = &CheckoutError{Kind: KindInsufficientBalance}
	ErrProductUnavailable    = &CheckoutError{Kind: KindProductUnavailable}
	ErrInsufficientInventory = &CheckoutError{Kind: KindInsufficientInventory}
	ErrEmptyCart             = &CheckoutError{Kind: KindEmptyCart}
	ErrCheckoutInProgress    = &CheckoutError{Kind: KindInProgress}
	ErrCheckoutFailed        = &CheckoutError{Kind: KindInternal}
)

func checkoutFailed(cause error) *CheckoutError {
	return &CheckoutError{Kind: KindInternal, Message: genericCheckoutMessage, cause: cause}
}

// asCheckoutError returns err as a *CheckoutError, wrapping unknown errors
// as the generic failure.
func asCheckoutError(err error) *CheckoutError {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce
	}
	return checkoutFailed(err)
}

// Package apperr holds the error taxonomy shared by the order engine and the
// mapping from those errors to HTTP statuses.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrEmptyOrder          = errors.New("order must have at least one item")
	ErrProductNotFound     = errors.New("product not found")
	ErrPriceMismatch       = errors.New("price mismatch")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrMissingCustomerInfo = errors.New("missing customer information")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrAmountMismatch      = errors.New("payment does not match order")
	ErrGateway             = errors.New("payment gateway error")
	ErrOrderNotFound       = errors.New("order not found")
	ErrConcurrentUpdate    = errors.New("order was modified concurrently")
	ErrForbidden           = errors.New("forbidden")
)

// FieldError describes one violated request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field violation found in a request.
type ValidationError struct {
	Fields []FieldError
}

// Add records a violation.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns e when violations exist and nil otherwise, so callers can
// return the result directly as an error.
func (e *ValidationError) OrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// GatewayError is an upstream payment-gateway failure. It carries the
// gateway's own error description.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", ErrGateway.Error(), e.Message)
	}
	return fmt.Sprintf("%s (status %d): %s", ErrGateway.Error(), e.StatusCode, e.Message)
}

func (e *GatewayError) Unwrap() error { return ErrGateway }

// Kind returns a stable classification string for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrEmptyOrder):
		return "empty_order"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrPriceMismatch):
		return "price_mismatch"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrMissingCustomerInfo):
		return "missing_customer_info"
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrConcurrentUpdate):
		return "concurrent_update"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrGateway):
		return "gateway"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the response status the API returns for it.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "validation", "empty_order", "price_mismatch", "insufficient_stock",
		"missing_customer_info", "invalid_signature", "amount_mismatch", "canceled":
		return http.StatusBadRequest
	case "product_not_found", "order_not_found":
		return http.StatusNotFound
	case "illegal_transition", "concurrent_update":
		return http.StatusConflict
	case "forbidden":
		return http.StatusForbidden
	case "timeout":
		return http.StatusGatewayTimeout
	case "gateway":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("not authorized to access this order")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("inventory check failed")
	ErrMalformedTask     = errors.New("malformed task payload")
	ErrUnknownAction     = errors.New("unknown task action")
	ErrCacheMiss         = errors.New("cache miss")
)

// ValidationError lists every problem found in a request.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + strings.Join(e.Details, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// LineFailure describes why one requested line cannot be served.
type LineFailure struct {
	ProductID string
	Name      string // empty when the product has no inventory row
	Available int
	Requested int
	Missing   bool
}

func (f LineFailure) Message() string {
	if f.Missing {
		return fmt.Sprintf("Product %s not found in inventory", f.ProductID)
	}
	return fmt.Sprintf("Insufficient stock for product %s. Available: %d, Requested: %d", f.Name, f.Available, f.Requested)
}

// StockError aggregates every failing line of a reservation.
type StockError struct {
	Failures []LineFailure
}

func (e *StockError) Error() string {
	return ErrInsufficientStock.Error() + ": " + strings.Join(e.Messages(), "; ")
}

func (e *StockError) Messages() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Message())
	}
	return out
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

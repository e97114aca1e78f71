package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error taxonomy for the inventory engine. Callers classify with errors.Is;
// the wrapped message carries enough context (ids, requested vs. available) to act on.
var (
	ErrorRecordNotFound      = errors.New("record not found")
	ErrorInvalidQuantity     = errors.New("invalid quantity")
	ErrorInsufficientStock   = errors.New("insufficient stock")
	ErrorInvalidTransition   = errors.New("invalid status transition")
	ErrorConcurrencyConflict = errors.New("concurrency conflict")
	ErrorDataIntegrity       = errors.New("data integrity error")
)

// NotFoundf wraps ErrorRecordNotFound with the missing resource's identity.
func NotFoundf(resource string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrorRecordNotFound, resource, id)
}

// InvalidQuantityf wraps ErrorInvalidQuantity with the offending value.
func InvalidQuantityf(field string, value decimal.Decimal) error {
	return fmt.Errorf("%w: %s must be positive, got %s", ErrorInvalidQuantity, field, value.String())
}

// InsufficientStockf reports requested vs. available for one ingredient.
func InsufficientStockf(ingredientId int, requested, available decimal.Decimal) error {
	return fmt.Errorf("%w: ingredient %d requires %s, available %s",
		ErrorInsufficientStock, ingredientId, requested.String(), available.String())
}

// InvalidTransitionf reports an illegal status change.
func InvalidTransitionf(entity string, id int, from, to string) error {
	return fmt.Errorf("%w: %s %d cannot move %s -> %s", ErrorInvalidTransition, entity, id, from, to)
}

// ConcurrencyConflictf is surfaced after bounded lock retries are exhausted.
func ConcurrencyConflictf(scope string, attempts int) error {
	return fmt.Errorf("%w: could not acquire %s lock after %d attempts", ErrorConcurrencyConflict, scope, attempts)
}

// DataIntegrityf flags corrupted reference data. Not retried, not user-correctable.
func DataIntegrityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrorDataIntegrity, fmt.Sprintf(format, args...))
}

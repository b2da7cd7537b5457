package lifecycle

import (
	"errors"
	"fmt"

	"github.com/imrishuroy/go-order-lifecycle/internal/pricing"
)

// Validation errors.
var (
	// ErrInvalidInput covers missing or malformed command fields.
	ErrInvalidInput = errors.New("lifecycle: invalid input")
	// ErrEmptyItems rejects an order without lines.
	ErrEmptyItems = errors.New("lifecycle: order has no items")
	// ErrPriceMismatch is returned when the submitted subtotal is off by more than the tolerance.
	ErrPriceMismatch = pricing.ErrPriceMismatch
)

// State-conflict errors.
var (
	// ErrInsufficientStock is matched by *InsufficientStockError.
	ErrInsufficientStock = errors.New("lifecycle: insufficient stock")
	// ErrOrderConflict signals a concurrent modification or a stale revert.
	ErrOrderConflict = errors.New("lifecycle: order was modified concurrently")
	// ErrRefundNotAllowed signals unmet refund request preconditions.
	ErrRefundNotAllowed = errors.New("lifecycle: refund not allowed")
	// ErrPaymentNotPaid rejects refunds of unpaid orders.
	ErrPaymentNotPaid = errors.New("lifecycle: order payment is not paid")
	// ErrAlreadyRefunded rejects a second refund.
	ErrAlreadyRefunded = errors.New("lifecycle: order already refunded")
	// ErrRefundAmountExceedsOrder rejects refunds above the order total.
	ErrRefundAmountExceedsOrder = errors.New("lifecycle: refund amount exceeds order total")
)

// Commit outcome errors.
var (
	// ErrCommitUnknown is returned when the commit transaction failed without
	// a cancellation, so it may or may not have been applied.
	ErrCommitUnknown = errors.New("lifecycle: commit outcome unknown")
	// ErrGuardFailed signals that a caller-supplied guard write rejected the commit.
	ErrGuardFailed = errors.New("lifecycle: commit guard failed")
)

// Not-found errors.
var (
	ErrOrderNotFound         = errors.New("lifecycle: order not found")
	ErrProductNotFound       = errors.New("lifecycle: product not found")
	ErrRefundRequestNotFound = errors.New("lifecycle: refund request not found")
)

// InsufficientStockError names the product that cannot cover a deduction.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (%s): available %d, requested %d",
		e.ProductName, e.ProductID, e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

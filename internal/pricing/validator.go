// Package pricing recomputes order subtotals from authoritative prices.
package pricing

import (
	"errors"
	"fmt"

	"github.com/imrishuroy/go-order-lifecycle/internal/money"
)

// ErrPriceMismatch means the submitted subtotal diverges from the computed one
// by more than the tolerance.
var ErrPriceMismatch = errors.New("pricing: price mismatch")

// DefaultTolerance is one currency unit of rounding slack.
var DefaultTolerance = money.FromInt(1)

// Line is one priced order line.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice money.Money // authoritative catalog price
}

// LineTotal is the server-side figure for one line.
type LineTotal struct {
	ProductID string
	Quantity  int
	UnitPrice money.Money
	Subtotal  money.Money
}

// Result carries the figures the caller must persist instead of client input.
type Result struct {
	Lines    []LineTotal
	Subtotal money.Money
}

// Validator compares client-submitted subtotals against recomputed ones.
type Validator struct {
	tolerance money.Money
}

// NewValidator returns a Validator. A negative tolerance is treated as zero.
func NewValidator(tolerance money.Money) *Validator {
	if tolerance.IsNegative() {
		tolerance = money.Zero
	}
	return &Validator{tolerance: tolerance}
}

// Validate recomputes the subtotal of lines and checks it against submitted.
func (v *Validator) Validate(lines []Line, submitted money.Money) (Result, error) {
	res := Result{Lines: make([]LineTotal, 0, len(lines)), Subtotal: money.Zero}
	for _, l := range lines {
		sub := l.UnitPrice.Times(l.Quantity)
		res.Lines = append(res.Lines, LineTotal{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  sub,
		})
		res.Subtotal = res.Subtotal.Add(sub)
	}

	diff := money.New(res.Subtotal.Sub(submitted).Abs())
	if diff.GreaterThan(v.tolerance) {
		return Result{}, fmt.Errorf("%w: submitted %s, computed %s", ErrPriceMismatch, submitted, res.Subtotal)
	}
	return res, nil
}

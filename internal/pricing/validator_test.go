package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-order-lifecycle/internal/money"
)

func TestValidate(t *testing.T) {
	v := NewValidator(DefaultTolerance)
	lines := []Line{
		{ProductID: "p1", Quantity: 2, UnitPrice: money.MustParse("25.25")},
		{ProductID: "p2", Quantity: 1, UnitPrice: money.FromInt(50)},
	}

	tests := []struct {
		name      string
		submitted money.Money
		wantErr   bool
	}{
		{name: "exact", submitted: money.MustParse("100.50")},
		{name: "within tolerance below", submitted: money.FromInt(100)},
		{name: "boundary", submitted: money.MustParse("99.50")},
		{name: "within tolerance above", submitted: money.MustParse("101.2")},
		{name: "too low", submitted: money.FromInt(90), wantErr: true},
		{name: "just over", submitted: money.MustParse("101.51"), wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := v.Validate(lines, tc.submitted)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrPriceMismatch)
				return
			}
			require.NoError(t, err)
			assert.True(t, res.Subtotal.Equal(money.MustParse("100.5")), "computed %s", res.Subtotal)
			require.Len(t, res.Lines, 2)
			assert.True(t, res.Lines[0].Subtotal.Equal(money.MustParse("50.5")))
			assert.True(t, res.Lines[1].Subtotal.Equal(money.FromInt(50)))
		})
	}
}

func TestValidateZeroTolerance(t *testing.T) {
	v := NewValidator(money.MustParse("-3"))
	_, err := v.Validate([]Line{{ProductID: "p", Quantity: 3, UnitPrice: money.MustParse("0.1")}}, money.MustParse("0.3"))
	require.NoError(t, err)

	_, err = v.Validate([]Line{{ProductID: "p", Quantity: 1, UnitPrice: money.FromInt(1)}}, money.MustParse("1.01"))
	require.ErrorIs(t, err, ErrPriceMismatch)
}

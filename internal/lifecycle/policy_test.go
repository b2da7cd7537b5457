package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
)

func TestPlanStock(t *testing.T) {
	tests := []struct {
		name    string
		current orders.Status
		target  orders.Status
		revert  bool
		held    bool
		want    StockAction
	}{
		{"cancel pending", orders.StatusPending, orders.StatusCancelled, false, true, StockRestore},
		{"cancel shipped", orders.StatusShipped, orders.StatusCancelled, false, true, StockRestore},
		{"cancel after revert released stock", orders.StatusPending, orders.StatusCancelled, false, false, StockNone},
		{"cancel cancelled", orders.StatusCancelled, orders.StatusCancelled, false, false, StockNone},
		{"reactivate cancelled", orders.StatusCancelled, orders.StatusConfirmed, false, false, StockDeduct},
		{"forward progress", orders.StatusPending, orders.StatusConfirmed, false, true, StockNone},
		{"deliver", orders.StatusShipped, orders.StatusDelivered, false, true, StockNone},
		{"forward without hold", orders.StatusPending, orders.StatusConfirmed, false, false, StockDeduct},
		{"same status without hold", orders.StatusPending, orders.StatusPending, false, false, StockNone},
		{"revert confirmed to pending", orders.StatusConfirmed, orders.StatusPending, true, true, StockRestore},
		{"revert confirmed to pending twice", orders.StatusConfirmed, orders.StatusPending, true, false, StockNone},
		{"revert cancelled to pending", orders.StatusCancelled, orders.StatusPending, true, false, StockDeduct},
		{"revert cancelled to pending while held", orders.StatusCancelled, orders.StatusPending, true, true, StockNone},
		{"revert shipped to processing", orders.StatusShipped, orders.StatusProcessing, true, true, StockNone},
		{"revert processing to confirmed", orders.StatusProcessing, orders.StatusConfirmed, true, true, StockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, planStock(tt.current, tt.target, tt.revert, tt.held))
		})
	}
}

package lifecycle

import (
	"github.com/imrishuroy/go-order-lifecycle/internal/events"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
)

// StockAction is the inventory effect of a transition.
type StockAction string

const (
	StockNone    StockAction = events.StockNone
	StockDeduct  StockAction = events.StockDeduct
	StockRestore StockAction = events.StockRestore
)

// planStock decides the inventory effect of moving an order from current to
// target. held reports whether the order's quantities are currently deducted;
// a restore is only planned while they are and a deduct only while they are
// not, so every deduction is matched by at most one restoration.
//
//	cancel (non-revert, not already cancelled)   restore
//	reactivate from cancelled (non-revert)       deduct
//	revert confirmed -> pending                  restore
//	revert cancelled -> pending                  deduct
//	other reverts, forward progress              none
//
// A non-revert move of an order that holds no stock into another
// non-cancelled status deducts again; that state is only reachable through
// the confirmed -> pending revert.
func planStock(current, target orders.Status, revert, held bool) StockAction {
	if revert {
		switch {
		case current == orders.StatusConfirmed && target == orders.StatusPending && held:
			return StockRestore
		case current == orders.StatusCancelled && target == orders.StatusPending && !held:
			return StockDeduct
		}
		return StockNone
	}

	if target == orders.StatusCancelled {
		if current != orders.StatusCancelled && held {
			return StockRestore
		}
		return StockNone
	}
	if !held && target != current {
		return StockDeduct
	}
	return StockNone
}

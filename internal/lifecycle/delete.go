package lifecycle

import (
	"context"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-order-lifecycle/internal/events"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
)

// DeleteOrder removes an order, returning any stock it still holds in the
// same transaction. Cancelled orders returned theirs when they were cancelled.
func (s *Service) DeleteOrder(ctx context.Context, orderID, actor string) (*orders.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	action := StockNone
	if order.InventoryHeld {
		action = StockRestore
	}
	adjs, err := s.prepareStock(ctx, order, action)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, order.OrderID, adjs, s.orders.Delete(order)); err != nil {
		return nil, err
	}

	s.logger.Info("order deleted",
		zap.String("order_id", order.OrderID),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)),
		zap.String("stock_action", string(action)))
	s.publish(ctx, events.OrderEvent{
		Type:        events.TypeOrderDeleted,
		OrderID:     order.OrderID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		StockAction: string(action),
		StockUnits:  stockUnits(adjs),
		Actor:       actor,
	})
	return order, nil
}

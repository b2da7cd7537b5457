package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-order-lifecycle/internal/events"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
)

// Revert marks an admin undo of a prior transition. PreviousStatus, when
// set, is the status the admin saw and must still be current.
type Revert struct {
	PreviousStatus orders.Status
}

// ChangeStatusCommand requests a status transition. Nil optional fields are
// left unchanged.
type ChangeStatusCommand struct {
	OrderID        string
	TargetStatus   orders.Status
	PaymentStatus  *orders.PaymentStatus
	TrackingNumber *string
	Notes          *string
	PaymentInfo    *orders.PaymentInfo
	Revert         *Revert
	Actor          string
}

// TransitionResult reports what a transition did.
type TransitionResult struct {
	Order          *orders.Order
	PreviousStatus orders.Status
	CurrentStatus  orders.Status
	StockAction    StockAction
	StockAdjusted  bool
}

// ChangeStatus applies a transition and its inventory effect atomically.
func (s *Service) ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (*TransitionResult, error) {
	if err := validateChangeStatus(cmd); err != nil {
		return nil, err
	}

	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	revert := cmd.Revert != nil
	if revert && cmd.Revert.PreviousStatus != "" && cmd.Revert.PreviousStatus != order.Status {
		return nil, fmt.Errorf("%w: revert expected status %q but order is %q",
			ErrOrderConflict, cmd.Revert.PreviousStatus, order.Status)
	}
	if order.Refunded() && cmd.TargetStatus != orders.StatusCancelled {
		return nil, fmt.Errorf("%w: refunded orders stay cancelled", ErrAlreadyRefunded)
	}
	if order.Refunded() && cmd.PaymentStatus != nil {
		return nil, fmt.Errorf("%w: payment status of a refunded order is final", ErrAlreadyRefunded)
	}

	action := planStock(order.Status, cmd.TargetStatus, revert, order.InventoryHeld)
	adjs, err := s.prepareStock(ctx, order, action)
	if err != nil {
		return nil, err
	}

	now := s.now()
	prev := order.Status
	order.Status = cmd.TargetStatus
	if cmd.TargetStatus == orders.StatusDelivered && prev != orders.StatusDelivered && order.DeliveryDate == nil {
		order.DeliveryDate = &now
	}
	if cmd.PaymentStatus != nil {
		order.PaymentStatus = *cmd.PaymentStatus
	}
	if cmd.TrackingNumber != nil {
		order.TrackingNumber = *cmd.TrackingNumber
	}
	if cmd.Notes != nil {
		order.Notes = *cmd.Notes
	}
	if cmd.PaymentInfo != nil {
		if order.PaymentStatus != orders.PaymentPaid {
			return nil, invalidf("payment info requires payment status %q", orders.PaymentPaid)
		}
		info := *cmd.PaymentInfo
		if info.PaidAt.IsZero() {
			info.PaidAt = now
		}
		order.PaymentInfo = &info
	}
	switch action {
	case StockDeduct:
		order.InventoryHeld = true
	case StockRestore:
		order.InventoryHeld = false
	}

	write, err := s.orders.PutUpdate(order)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, order.OrderID, adjs, write); err != nil {
		return nil, err
	}

	res := &TransitionResult{
		Order:          order,
		PreviousStatus: prev,
		CurrentStatus:  order.Status,
		StockAction:    action,
		StockAdjusted:  len(adjs) > 0,
	}
	s.logger.Info("order status changed",
		zap.String("order_id", order.OrderID),
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(prev)),
		zap.String("to", string(order.Status)),
		zap.Bool("revert", revert),
		zap.String("stock_action", string(action)),
		zap.Bool("stock_adjusted", res.StockAdjusted))
	s.publish(ctx, events.OrderEvent{
		Type:           events.TypeStatusChanged,
		OrderID:        order.OrderID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: string(prev),
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		StockAction:    string(action),
		StockUnits:     stockUnits(adjs),
		Actor:          cmd.Actor,
	})
	return res, nil
}

func validateChangeStatus(cmd ChangeStatusCommand) error {
	if cmd.OrderID == "" {
		return invalidf("order id is required")
	}
	if !cmd.TargetStatus.Valid() {
		return invalidf("unknown status %q", cmd.TargetStatus)
	}
	if cmd.PaymentStatus != nil {
		if !cmd.PaymentStatus.Valid() {
			return invalidf("unknown payment status %q", *cmd.PaymentStatus)
		}
		if *cmd.PaymentStatus == orders.PaymentRefunded {
			return invalidf("payment status %q is only set by processing a refund", orders.PaymentRefunded)
		}
	}
	if cmd.Revert != nil && cmd.Revert.PreviousStatus != "" && !cmd.Revert.PreviousStatus.Valid() {
		return invalidf("unknown revert status %q", cmd.Revert.PreviousStatus)
	}
	return nil
}

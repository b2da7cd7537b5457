package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-order-lifecycle/internal/events"
	"github.com/imrishuroy/go-order-lifecycle/internal/money"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
)

// RequestRefundCommand is a customer's refund request.
type RequestRefundCommand struct {
	OrderID         string
	RequestedBy     string
	Reason          string
	RequestedAmount money.Money
}

// ProcessRefundCommand executes a refund. OriginalRequestID links the refund
// to a pending request; when empty, a pending request is linked implicitly.
type ProcessRefundCommand struct {
	OrderID           string
	Amount            money.Money
	Reason            string
	Method            string
	ProcessedBy       string
	OriginalRequestID string
	AdminNotes        string
}

// RejectRefundCommand declines a pending refund request.
type RejectRefundCommand struct {
	RequestID   string
	Reason      string
	ProcessedBy string
}

// CanRequestRefund reports whether a customer may raise a refund request.
// The workflow operations check the same conditions again.
func CanRequestRefund(o *orders.Order) bool {
	return RefundBlocker(o) == ""
}

// RefundBlocker returns why a refund request is not allowed, or "" if it is.
func RefundBlocker(o *orders.Order) string {
	switch {
	case o == nil:
		return "order is missing"
	case o.PaymentStatus == orders.PaymentRefunded:
		return "order is already refunded"
	case o.PaymentStatus != orders.PaymentPaid:
		return "order is not paid"
	case o.Status == orders.StatusCancelled:
		return "order is cancelled"
	case o.RefundInfo != nil:
		return "refund already processed"
	case o.RefundRequest.Live():
		return "a refund request is already open"
	}
	return ""
}

// RequestRefund attaches a pending refund request. Stock and payment state
// are left alone until an admin acts on it.
func (s *Service) RequestRefund(ctx context.Context, cmd RequestRefundCommand) (*orders.RefundRequest, error) {
	if strings.TrimSpace(cmd.RequestedBy) == "" {
		return nil, invalidf("requested by is required")
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		return nil, invalidf("reason is required")
	}
	if !cmd.RequestedAmount.IsPositive() {
		return nil, invalidf("requested amount must be positive")
	}

	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if reason := RefundBlocker(order); reason != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefundNotAllowed, reason)
	}
	if cmd.RequestedAmount.GreaterThan(order.Pricing.Total) {
		return nil, fmt.Errorf("%w: requested %s, order total %s",
			ErrRefundAmountExceedsOrder, cmd.RequestedAmount, order.Pricing.Total)
	}

	req := &orders.RefundRequest{
		ID:              "RR-" + s.newRefID(),
		RequestedBy:     cmd.RequestedBy,
		Reason:          cmd.Reason,
		RequestedAmount: cmd.RequestedAmount,
		MaxRefundAmount: order.Pricing.Total,
		Status:          orders.RefundRequestPending,
		RequestedAt:     s.now(),
		CustomerInfo:    order.CustomerInfo,
	}
	order.RefundRequest = req

	write, err := s.orders.PutUpdate(order)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, order.OrderID, nil, write); err != nil {
		return nil, err
	}

	s.logger.Info("refund requested",
		zap.String("order_id", order.OrderID),
		zap.String("request_id", req.ID),
		zap.String("amount", req.RequestedAmount.String()))
	s.publish(ctx, events.OrderEvent{
		Type:          events.TypeRefundRequested,
		OrderID:       order.OrderID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Amount:        req.RequestedAmount.String(),
		Actor:         req.RequestedBy,
	})
	return req, nil
}

// ProcessRefund executes a refund: stock still held by the order is returned,
// the refund is recorded and the order is closed as cancelled and refunded.
func (s *Service) ProcessRefund(ctx context.Context, cmd ProcessRefundCommand) (*orders.RefundInfo, error) {
	switch {
	case !cmd.Amount.IsPositive():
		return nil, invalidf("refund amount must be positive")
	case strings.TrimSpace(cmd.Reason) == "":
		return nil, invalidf("reason is required")
	case strings.TrimSpace(cmd.Method) == "":
		return nil, invalidf("method is required")
	case strings.TrimSpace(cmd.ProcessedBy) == "":
		return nil, invalidf("processed by is required")
	}

	order, err := s.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Refunded() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRefunded, order.OrderID)
	}
	if order.PaymentStatus != orders.PaymentPaid {
		return nil, fmt.Errorf("%w: payment status is %q", ErrPaymentNotPaid, order.PaymentStatus)
	}
	if cmd.Amount.GreaterThan(order.Pricing.Total) {
		return nil, fmt.Errorf("%w: refund %s, order total %s",
			ErrRefundAmountExceedsOrder, cmd.Amount, order.Pricing.Total)
	}

	req := order.RefundRequest
	if cmd.OriginalRequestID != "" {
		if req == nil || req.ID != cmd.OriginalRequestID {
			return nil, fmt.Errorf("%w: %s", ErrRefundRequestNotFound, cmd.OriginalRequestID)
		}
		if req.Status != orders.RefundRequestPending {
			return nil, fmt.Errorf("%w: refund request %s is %s", ErrRefundNotAllowed, req.ID, req.Status)
		}
	} else if req != nil && req.Status != orders.RefundRequestPending {
		req = nil
	}

	action := StockNone
	if order.InventoryHeld {
		action = StockRestore
	}
	adjs, err := s.prepareStock(ctx, order, action)
	if err != nil {
		return nil, err
	}

	now := s.now()
	info := &orders.RefundInfo{
		Amount:        cmd.Amount,
		Reason:        cmd.Reason,
		Method:        cmd.Method,
		TransactionID: "RF-" + s.newRefID(),
		ProcessedAt:   now,
		ProcessedBy:   cmd.ProcessedBy,
	}
	prev := order.Status
	order.RefundInfo = info
	order.Status = orders.StatusCancelled
	order.PaymentStatus = orders.PaymentRefunded
	order.InventoryHeld = false
	if req != nil {
		approved := cmd.Amount
		info.OriginalRequestID = req.ID
		req.Status = orders.RefundRequestApproved
		req.ProcessedAt = &now
		req.ProcessedBy = cmd.ProcessedBy
		req.ApprovedAmount = &approved
		req.AdminNotes = cmd.AdminNotes
	}

	write, err := s.orders.PutUpdate(order)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, order.OrderID, adjs, write); err != nil {
		return nil, err
	}

	s.logger.Info("refund processed",
		zap.String("order_id", order.OrderID),
		zap.String("transaction_id", info.TransactionID),
		zap.String("amount", info.Amount.String()),
		zap.String("from", string(prev)),
		zap.String("stock_action", string(action)))
	s.publish(ctx, events.OrderEvent{
		Type:           events.TypeRefundProcessed,
		OrderID:        order.OrderID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: string(prev),
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		StockAction:    string(action),
		StockUnits:     stockUnits(adjs),
		Amount:         info.Amount.String(),
		Actor:          cmd.ProcessedBy,
	})
	return info, nil
}

// RejectRefundRequest declines a pending request. It has no stock or
// payment effect; the customer may raise a new request afterwards.
func (s *Service) RejectRefundRequest(ctx context.Context, cmd RejectRefundCommand) (*orders.RefundRequest, error) {
	if strings.TrimSpace(cmd.RequestID) == "" {
		return nil, invalidf("request id is required")
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		return nil, invalidf("reason is required")
	}

	order, err := s.orders.FindByRefundRequestID(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.RefundRequest == nil || order.RefundRequest.ID != cmd.RequestID {
		return nil, fmt.Errorf("%w: %s", ErrRefundRequestNotFound, cmd.RequestID)
	}
	req := order.RefundRequest
	if req.Status != orders.RefundRequestPending {
		return nil, fmt.Errorf("%w: refund request %s is %s", ErrRefundNotAllowed, req.ID, req.Status)
	}

	now := s.now()
	req.Status = orders.RefundRequestRejected
	req.ProcessedAt = &now
	req.ProcessedBy = cmd.ProcessedBy
	req.AdminNotes = cmd.Reason

	write, err := s.orders.PutUpdate(order)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, order.OrderID, nil, write); err != nil {
		return nil, err
	}

	s.logger.Info("refund request rejected",
		zap.String("order_id", order.OrderID),
		zap.String("request_id", req.ID))
	s.publish(ctx, events.OrderEvent{
		Type:          events.TypeRefundRejected,
		OrderID:       order.OrderID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Actor:         cmd.ProcessedBy,
	})
	return req, nil
}

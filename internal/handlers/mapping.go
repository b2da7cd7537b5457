package handlers

import (
	"github.com/imrishuroy/go-order-lifecycle/internal/lifecycle"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
	"github.com/imrishuroy/go-order-lifecycle/internal/validation"
)

func createCommand(req validation.CreateOrderRequest) lifecycle.CreateOrderCommand {
	items := make([]lifecycle.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, lifecycle.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lifecycle.CreateOrderCommand{
		UserID: req.UserID,
		CustomerInfo: orders.CustomerInfo{
			Name:    req.CustomerInfo.Name,
			Email:   req.CustomerInfo.Email,
			Phone:   req.CustomerInfo.Phone,
			Address: req.CustomerInfo.Address,
			City:    req.CustomerInfo.City,
		},
		Items: items,
		Pricing: lifecycle.SubmittedPricing{
			Subtotal: req.Pricing.Subtotal,
			Shipping: req.Pricing.Shipping,
		},
		Notes: req.Notes,
	}
}

func changeStatusCommand(orderID, actor string, req validation.ChangeStatusRequest) lifecycle.ChangeStatusCommand {
	cmd := lifecycle.ChangeStatusCommand{
		OrderID:        orderID,
		TargetStatus:   orders.Status(req.Status),
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
		Actor:          actor,
	}
	if req.PaymentStatus != nil {
		ps := orders.PaymentStatus(*req.PaymentStatus)
		cmd.PaymentStatus = &ps
	}
	if req.Revert != nil {
		cmd.Revert = &lifecycle.Revert{PreviousStatus: orders.Status(req.Revert.PreviousStatus)}
	}
	if p := req.PaymentInfo; p != nil {
		info := &orders.PaymentInfo{
			Method:        p.Method,
			MethodName:    p.MethodName,
			TransactionID: p.TransactionID,
		}
		if p.PaidAt != nil {
			info.PaidAt = p.PaidAt.UTC()
		}
		if p.CardData != nil {
			info.CardData = &orders.CardData{Last4: p.CardData.Last4, CardType: p.CardData.CardType}
		}
		cmd.PaymentInfo = info
	}
	return cmd
}

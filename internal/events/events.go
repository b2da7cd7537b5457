// Package events defines order lifecycle events and the port used to emit them.
package events

import (
	"context"
	"time"
)

// Event types
const (
	TypeOrderCreated    = "order.created"
	TypeStatusChanged   = "order.status_changed"
	TypeOrderDeleted    = "order.deleted"
	TypeRefundRequested = "order.refund_requested"
	TypeRefundRejected  = "order.refund_rejected"
	TypeRefundProcessed = "order.refunded"
)

// Stock actions carried by events.
const (
	StockNone    = "none"
	StockDeduct  = "deduct"
	StockRestore = "restore"
)

// OrderEvent is published after a lifecycle mutation commits.
type OrderEvent struct {
	EventID        string    `json:"event_id"`
	Type           string    `json:"type"`
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Status         string    `json:"status,omitempty"`
	PaymentStatus  string    `json:"payment_status,omitempty"`
	StockAction    string    `json:"stock_action,omitempty"`
	StockUnits     int       `json:"stock_units,omitempty"`
	Amount         string    `json:"amount,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Notifier receives committed lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event OrderEvent) error
}

// NopNotifier drops every event.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, OrderEvent) error { return nil }

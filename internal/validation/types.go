package validation

import (
	"time"

	"github.com/imrishuroy/go-order-lifecycle/internal/money"
)

// CustomerInfo identifies the buyer. Either an email or a phone is required.
type CustomerInfo struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone   string `json:"phone" validate:"required_without=Email,omitempty,max=40"`
	Address string `json:"address" validate:"max=500"`
	City    string `json:"city" validate:"max=100"`
}

// OrderItem is a requested product and quantity. Prices come from the catalog.
type OrderItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// Pricing is the client's view of the totals.
type Pricing struct {
	Subtotal money.Money `json:"subtotal" validate:"gte=0"`
	Shipping money.Money `json:"shipping" validate:"gte=0"`
}

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	UserID       string       `json:"user_id"`
	CustomerInfo CustomerInfo `json:"customer_info"`
	Items        []OrderItem  `json:"items" validate:"dive"` // emptiness is reported by the engine as empty_items
	Pricing      Pricing      `json:"pricing"`
	Notes        string       `json:"notes" validate:"max=1000"`
}

// CardData is the masked card attached to a payment.
type CardData struct {
	Last4    string `json:"last4" validate:"omitempty,len=4,numeric"`
	CardType string `json:"card_type"`
}

// PaymentInfo is attached when payment is confirmed.
type PaymentInfo struct {
	Method        string     `json:"method" validate:"required"`
	MethodName    string     `json:"method_name"`
	TransactionID string     `json:"transaction_id"`
	PaidAt        *time.Time `json:"paid_at"`
	CardData      *CardData  `json:"card_data"`
}

// Revert marks an admin undo. PreviousStatus is the status the admin saw.
type Revert struct {
	PreviousStatus string `json:"previous_status" validate:"omitempty,oneof=pending confirmed processing shipped delivered cancelled"`
}

// ChangeStatusRequest is the payload for PATCH /orders/:id/status.
// Absent optional fields are left unchanged.
type ChangeStatusRequest struct {
	Status         string       `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	PaymentStatus  *string      `json:"payment_status" validate:"omitempty,oneof=pending paid failed"`
	TrackingNumber *string      `json:"tracking_number" validate:"omitempty,max=100"`
	Notes          *string      `json:"notes" validate:"omitempty,max=1000"`
	PaymentInfo    *PaymentInfo `json:"payment_info"`
	Revert         *Revert      `json:"revert"`
}

// RequestRefundRequest is the payload for POST /orders/:id/refund-requests.
type RequestRefundRequest struct {
	RequestedBy     string      `json:"requested_by" validate:"required"`
	Reason          string      `json:"reason" validate:"required,max=1000"`
	RequestedAmount money.Money `json:"requested_amount" validate:"gt=0"`
}

// ProcessRefundRequest is the payload for POST /orders/:id/refunds.
type ProcessRefundRequest struct {
	Amount            money.Money `json:"amount" validate:"gt=0"`
	Reason            string      `json:"reason" validate:"required,max=1000"`
	Method            string      `json:"method" validate:"required"`
	ProcessedBy       string      `json:"processed_by" validate:"required"`
	OriginalRequestID string      `json:"original_request_id"`
	AdminNotes        string      `json:"admin_notes" validate:"max=1000"`
}

// RejectRefundRequest is the payload for POST /refund-requests/:requestId/reject.
type RejectRefundRequest struct {
	Reason      string `json:"reason" validate:"required,max=1000"`
	ProcessedBy string `json:"processed_by" validate:"required"`
}

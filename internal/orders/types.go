package orders

import (
	"time"

	"github.com/imrishuroy/go-order-lifecycle/internal/money"
)

// Status is the fulfilment state of an order.
type Status string

// Order statuses
const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

// Payment statuses
const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// RefundRequestStatus is the review state of a customer refund request.
type RefundRequestStatus string

// Refund request statuses
const (
	RefundRequestPending  RefundRequestStatus = "pending"
	RefundRequestApproved RefundRequestStatus = "approved"
	RefundRequestRejected RefundRequestStatus = "rejected"
)

// CustomerInfo is the buyer snapshot captured when the order is placed.
type CustomerInfo struct {
	Name    string `dynamodbav:"name" json:"name"`
	Email   string `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Phone   string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Address string `dynamodbav:"address,omitempty" json:"address,omitempty"`
	City    string `dynamodbav:"city,omitempty" json:"city,omitempty"`
}

// Item is an order line. Name, image and price are copied from the catalog at
// creation and never re-derived.
type Item struct {
	ProductID    string      `dynamodbav:"product_id" json:"product_id"`
	ProductName  string      `dynamodbav:"product_name" json:"product_name"`
	ProductImage string      `dynamodbav:"product_image,omitempty" json:"product_image,omitempty"`
	Quantity     int         `dynamodbav:"quantity" json:"quantity"`
	UnitPrice    money.Money `dynamodbav:"unit_price" json:"unit_price"`
	Subtotal     money.Money `dynamodbav:"subtotal" json:"subtotal"`
}

// Pricing holds the order totals. Total always equals Subtotal + Shipping.
type Pricing struct {
	Subtotal money.Money `dynamodbav:"subtotal" json:"subtotal"`
	Shipping money.Money `dynamodbav:"shipping" json:"shipping"`
	Total    money.Money `dynamodbav:"total" json:"total"`
}

// NewPricing derives the total from subtotal and shipping.
func NewPricing(subtotal, shipping money.Money) Pricing {
	return Pricing{Subtotal: subtotal, Shipping: shipping, Total: subtotal.Add(shipping)}
}

// CardData is the non-sensitive part of a card payment.
type CardData struct {
	Last4    string `dynamodbav:"last4" json:"last4"`
	CardType string `dynamodbav:"card_type" json:"card_type"`
}

// PaymentInfo is attached when payment is confirmed.
type PaymentInfo struct {
	Method        string    `dynamodbav:"method" json:"method"`
	MethodName    string    `dynamodbav:"method_name,omitempty" json:"method_name,omitempty"`
	PaidAt        time.Time `dynamodbav:"paid_at" json:"paid_at"`
	TransactionID string    `dynamodbav:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	CardData      *CardData `dynamodbav:"card_data,omitempty" json:"card_data,omitempty"`
}

func (p *PaymentInfo) empty() bool {
	return p.Method == "" && p.TransactionID == "" && p.PaidAt.IsZero()
}

// RefundRequest is a customer's non-binding ask for a refund.
type RefundRequest struct {
	ID              string              `dynamodbav:"id" json:"id"`
	RequestedBy     string              `dynamodbav:"requested_by" json:"requested_by"`
	Reason          string              `dynamodbav:"reason" json:"reason"`
	RequestedAmount money.Money         `dynamodbav:"requested_amount" json:"requested_amount"`
	MaxRefundAmount money.Money         `dynamodbav:"max_refund_amount" json:"max_refund_amount"`
	Status          RefundRequestStatus `dynamodbav:"status" json:"status"`
	RequestedAt     time.Time           `dynamodbav:"requested_at" json:"requested_at"`
	CustomerInfo    CustomerInfo        `dynamodbav:"customer_info" json:"customer_info"`
	ProcessedAt     *time.Time          `dynamodbav:"processed_at,omitempty" json:"processed_at,omitempty"`
	ProcessedBy     string              `dynamodbav:"processed_by,omitempty" json:"processed_by,omitempty"`
	ApprovedAmount  *money.Money        `dynamodbav:"approved_amount,omitempty" json:"approved_amount,omitempty"`
	AdminNotes      string              `dynamodbav:"admin_notes,omitempty" json:"admin_notes,omitempty"`
}

// Live reports whether the request still blocks a new one.
func (r *RefundRequest) Live() bool {
	return r != nil && (r.Status == RefundRequestPending || r.Status == RefundRequestApproved)
}

func (r *RefundRequest) empty() bool {
	return r.ID == "" && r.RequestedBy == "" && r.Status == ""
}

// RefundInfo records an executed refund. It is written once.
type RefundInfo struct {
	Amount            money.Money `dynamodbav:"amount" json:"amount"`
	Reason            string      `dynamodbav:"reason" json:"reason"`
	Method            string      `dynamodbav:"method" json:"method"`
	TransactionID     string      `dynamodbav:"transaction_id" json:"transaction_id"`
	ProcessedAt       time.Time   `dynamodbav:"processed_at" json:"processed_at"`
	ProcessedBy       string      `dynamodbav:"processed_by" json:"processed_by"`
	OriginalRequestID string      `dynamodbav:"original_request_id,omitempty" json:"original_request_id,omitempty"`
}

func (r *RefundInfo) empty() bool {
	return r.TransactionID == "" && r.ProcessedBy == "" && r.ProcessedAt.IsZero()
}

// Order represents the item stored in the orders DynamoDB table.
type Order struct {
	OrderID         string         `dynamodbav:"order_id" json:"order_id"` // PK
	OrderNumber     string         `dynamodbav:"order_number" json:"order_number"`
	UserID          string         `dynamodbav:"user_id,omitempty" json:"user_id,omitempty"`
	CustomerInfo    CustomerInfo   `dynamodbav:"customer_info" json:"customer_info"`
	Items           []Item         `dynamodbav:"items" json:"items"`
	Pricing         Pricing        `dynamodbav:"pricing" json:"pricing"`
	Status          Status         `dynamodbav:"status" json:"status"`
	PaymentStatus   PaymentStatus  `dynamodbav:"payment_status" json:"payment_status"`
	OrderDate       time.Time      `dynamodbav:"order_date" json:"order_date"`
	DeliveryDate    *time.Time     `dynamodbav:"delivery_date,omitempty" json:"delivery_date,omitempty"`
	TrackingNumber  string         `dynamodbav:"tracking_number,omitempty" json:"tracking_number,omitempty"`
	Notes           string         `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	PaymentInfo     *PaymentInfo   `dynamodbav:"payment_info,omitempty" json:"payment_info,omitempty"`
	RefundRequest   *RefundRequest `dynamodbav:"refund_request,omitempty" json:"refund_request,omitempty"`
	RefundRequestID string         `dynamodbav:"refund_request_id,omitempty" json:"-"` // GSI projection of RefundRequest.ID
	RefundInfo      *RefundInfo    `dynamodbav:"refund_info,omitempty" json:"refund_info,omitempty"`

	// InventoryHeld is true while the order's quantities are deducted from
	// product stock. Restorations require it, deductions require its absence.
	InventoryHeld bool `dynamodbav:"inventory_held" json:"inventory_held"`

	Version   int64     `dynamodbav:"version" json:"version"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// Normalize collapses structurally empty optional records to nil and keeps
// the refund request index attribute in step with the request.
func (o *Order) Normalize() {
	if o.RefundRequest != nil && o.RefundRequest.empty() {
		o.RefundRequest = nil
	}
	if o.RefundInfo != nil && o.RefundInfo.empty() {
		o.RefundInfo = nil
	}
	if o.PaymentInfo != nil && o.PaymentInfo.empty() {
		o.PaymentInfo = nil
	}
	o.RefundRequestID = ""
	if o.RefundRequest != nil {
		o.RefundRequestID = o.RefundRequest.ID
	}
}

// Refunded reports whether a refund has been executed.
func (o *Order) Refunded() bool {
	return o.PaymentStatus == PaymentRefunded || o.RefundInfo != nil
}

// ItemsSubtotal sums the line subtotals.
func (o *Order) ItemsSubtotal() money.Money {
	sum := money.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal)
	}
	return sum
}

package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-order-lifecycle/internal/events"
	"github.com/imrishuroy/go-order-lifecycle/internal/inventory"
	"github.com/imrishuroy/go-order-lifecycle/internal/money"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
	"github.com/imrishuroy/go-order-lifecycle/internal/pricing"
)

// OrderLine is a requested product and quantity.
type OrderLine struct {
	ProductID string
	Quantity  int
}

// SubmittedPricing is the client's view of the totals. Only the subtotal is
// checked; the persisted figures are always recomputed.
type SubmittedPricing struct {
	Subtotal money.Money
	Shipping money.Money
}

// CreateOrderCommand carries an order placement.
type CreateOrderCommand struct {
	UserID       string
	CustomerInfo orders.CustomerInfo
	Items        []OrderLine
	Pricing      SubmittedPricing
	Notes        string

	// Guard, when set, builds an extra conditional write committed in the
	// same transaction as the order. A failed guard condition aborts the
	// placement with ErrGuardFailed.
	Guard func(*orders.Order) (types.TransactWriteItem, error)
}

// CreateOrder validates, prices and places an order. Stock for every line is
// deducted in the same transaction that stores the order, so a failure at
// any point leaves stock untouched.
func (s *Service) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*orders.Order, error) {
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	products := make(map[string]*inventory.Product, len(cmd.Items))
	lines := make([]pricing.Line, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		p, ok := products[it.ProductID]
		if !ok {
			var err error
			p, err = s.inventory.Get(ctx, it.ProductID)
			if err != nil {
				return nil, err
			}
			if p == nil {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
			}
			products[it.ProductID] = p
		}
		lines = append(lines, pricing.Line{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: p.Price})
	}

	requested := make([]inventory.Adjustment, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		requested = append(requested, inventory.Adjustment{ProductID: it.ProductID, Delta: -it.Quantity})
	}
	adjs := inventory.Consolidate(requested)
	limit := maxStockWrites
	if cmd.Guard != nil {
		limit--
	}
	if len(adjs) > limit {
		return nil, invalidf("order touches %d products, at most %d are supported", len(adjs), limit)
	}
	for i, a := range adjs {
		p := products[a.ProductID]
		adjs[i].ProductName = p.Name
		if p.Stock < -a.Delta {
			return nil, &InsufficientStockError{
				ProductID:   p.ProductID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   -a.Delta,
			}
		}
	}

	priced, err := s.pricing.Validate(lines, cmd.Pricing.Subtotal)
	if err != nil {
		return nil, err
	}

	items := make([]orders.Item, 0, len(priced.Lines))
	for _, l := range priced.Lines {
		p := products[l.ProductID]
		items = append(items, orders.Item{
			ProductID:    p.ProductID,
			ProductName:  p.Name,
			ProductImage: p.Image,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			Subtotal:     l.Subtotal,
		})
	}

	now := s.now()
	number, err := s.numbers.Allocate(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("allocate order number: %w", err)
	}

	order := &orders.Order{
		OrderID:       s.newID(),
		OrderNumber:   number,
		UserID:        strings.TrimSpace(cmd.UserID),
		CustomerInfo:  cmd.CustomerInfo,
		Items:         items,
		Pricing:       orders.NewPricing(priced.Subtotal, cmd.Pricing.Shipping),
		Status:        orders.StatusPending,
		PaymentStatus: orders.PaymentPending,
		OrderDate:     now,
		Notes:         cmd.Notes,
		InventoryHeld: true,
		CreatedAt:     now,
	}

	put, err := s.orders.PutCreate(order)
	if err != nil {
		return nil, err
	}
	var guards []types.TransactWriteItem
	if cmd.Guard != nil {
		g, err := cmd.Guard(order)
		if err != nil {
			return nil, fmt.Errorf("build commit guard: %w", err)
		}
		guards = append(guards, g)
	}
	if err := s.commit(ctx, order.OrderID, adjs, put, guards...); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.OrderID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Pricing.Total.String()))
	s.publish(ctx, events.OrderEvent{
		Type:          events.TypeOrderCreated,
		OrderID:       order.OrderID,
		OrderNumber:   order.OrderNumber,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		StockAction:   string(StockDeduct),
		StockUnits:    stockUnits(adjs),
		Amount:        order.Pricing.Total.String(),
		Actor:         order.UserID,
	})
	return order, nil
}

func validateCreate(cmd CreateOrderCommand) error {
	if strings.TrimSpace(cmd.CustomerInfo.Name) == "" {
		return invalidf("customer name is required")
	}
	if strings.TrimSpace(cmd.CustomerInfo.Email) == "" && strings.TrimSpace(cmd.CustomerInfo.Phone) == "" {
		return invalidf("customer email or phone is required")
	}
	if len(cmd.Items) == 0 {
		return ErrEmptyItems
	}
	for i, it := range cmd.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return invalidf("item %d: product id is required", i)
		}
		if it.Quantity < 1 {
			return invalidf("item %d: quantity must be at least 1", i)
		}
	}
	if cmd.Pricing.Subtotal.IsNegative() {
		return invalidf("subtotal must not be negative")
	}
	if cmd.Pricing.Shipping.IsNegative() {
		return invalidf("shipping must not be negative")
	}
	return nil
}

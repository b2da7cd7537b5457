// Package lifecycle moves orders through their status state machine while
// keeping product stock consistent with every transition, deletion and refund.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-order-lifecycle/internal/aws"
	"github.com/imrishuroy/go-order-lifecycle/internal/events"
	"github.com/imrishuroy/go-order-lifecycle/internal/inventory"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
	"github.com/imrishuroy/go-order-lifecycle/internal/pricing"
)

// maxStockWrites leaves room for the order write in a 100-item transaction.
const maxStockWrites = 99

// NumberAllocator hands out order numbers.
type NumberAllocator interface {
	Allocate(ctx context.Context, date time.Time) (string, error)
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	DynamoDB  aws.DynamoDBAPI
	Orders    *orders.Store
	Inventory *inventory.Store
	Numbers   NumberAllocator
	Pricing   *pricing.Validator
	Notifier  events.Notifier
	Logger    *zap.Logger
	Clock     func() time.Time
	NewID     func() string // order and event ids
	NewRefID  func() string // refund request and refund transaction ids
}

// Service is the order lifecycle engine.
type Service struct {
	db        aws.DynamoDBAPI
	orders    *orders.Store
	inventory *inventory.Store
	numbers   NumberAllocator
	pricing   *pricing.Validator
	notifier  events.Notifier
	logger    *zap.Logger
	clock     func() time.Time
	newID     func() string
	newRefID  func() string
}

// NewService validates deps and returns a Service.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.DynamoDB == nil:
		return nil, errors.New("lifecycle: dynamodb client is required")
	case deps.Orders == nil:
		return nil, errors.New("lifecycle: orders store is required")
	case deps.Inventory == nil:
		return nil, errors.New("lifecycle: inventory store is required")
	case deps.Numbers == nil:
		return nil, errors.New("lifecycle: order number allocator is required")
	}

	s := &Service{
		db:        deps.DynamoDB,
		orders:    deps.Orders,
		inventory: deps.Inventory,
		numbers:   deps.Numbers,
		pricing:   deps.Pricing,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		clock:     deps.Clock,
		newID:     deps.NewID,
		newRefID:  deps.NewRefID,
	}
	if s.pricing == nil {
		s.pricing = pricing.NewValidator(pricing.DefaultTolerance)
	}
	if s.notifier == nil {
		s.notifier = events.NopNotifier{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.newRefID == nil {
		s.newRefID = func() string { return ulid.Make().String() }
	}
	return s, nil
}

// GetOrder returns the order or ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	if orderID == "" {
		return nil, invalidf("order id is required")
	}
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return o, nil
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// itemAdjustments returns one consolidated adjustment per product of items,
// signed by action.
func itemAdjustments(items []orders.Item, action StockAction) []inventory.Adjustment {
	sign := 0
	switch action {
	case StockDeduct:
		sign = -1
	case StockRestore:
		sign = 1
	default:
		return nil
	}
	adjs := make([]inventory.Adjustment, 0, len(items))
	for _, it := range items {
		adjs = append(adjs, inventory.Adjustment{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Delta:       sign * it.Quantity,
		})
	}
	return inventory.Consolidate(adjs)
}

// prepareStock turns an action into the adjustments to commit. Deductions
// are checked against current stock for every product before anything is
// written. Restorations for products that no longer exist are skipped.
func (s *Service) prepareStock(ctx context.Context, order *orders.Order, action StockAction) ([]inventory.Adjustment, error) {
	adjs := itemAdjustments(order.Items, action)
	if len(adjs) > maxStockWrites {
		return nil, invalidf("order touches %d products, at most %d are supported", len(adjs), maxStockWrites)
	}

	kept := adjs[:0]
	for _, a := range adjs {
		p, err := s.inventory.Get(ctx, a.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			if a.Delta > 0 {
				s.logger.Warn("skipping stock restore for missing product",
					zap.String("order_id", order.OrderID),
					zap.String("product_id", a.ProductID),
					zap.Int("quantity", a.Delta))
				continue
			}
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, a.ProductID)
		}
		if a.Delta < 0 && p.Stock < -a.Delta {
			return nil, &InsufficientStockError{
				ProductID:   p.ProductID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   -a.Delta,
			}
		}
		kept = append(kept, a)
	}
	return kept, nil
}

// commit writes the stock adjustments and the order write in one transaction.
func (s *Service) commit(ctx context.Context, orderID string, adjs []inventory.Adjustment, orderWrite types.TransactWriteItem, guards ...types.TransactWriteItem) error {
	items := make([]types.TransactWriteItem, 0, len(adjs)+1+len(guards))
	for _, a := range adjs {
		items = append(items, s.inventory.TransactItem(a))
	}
	items = append(items, orderWrite)
	items = append(items, guards...)

	_, err := s.db.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}

	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return fmt.Errorf("%w: order %s: %w", ErrCommitUnknown, orderID, err)
	}
	for i, reason := range tce.CancellationReasons {
		if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
			continue
		}
		switch {
		case i < len(adjs):
			return s.stockFailure(ctx, adjs[i])
		case i == len(adjs):
			return fmt.Errorf("%w: %s", ErrOrderConflict, orderID)
		default:
			return fmt.Errorf("%w: order %s", ErrGuardFailed, orderID)
		}
	}
	// TransactionConflict and friends: another writer touched the same items.
	return fmt.Errorf("%w: %s: %v", ErrOrderConflict, orderID, err)
}

// stockFailure explains a failed stock condition after the fact.
func (s *Service) stockFailure(ctx context.Context, a inventory.Adjustment) error {
	p, err := s.inventory.Get(ctx, a.ProductID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: %s", ErrProductNotFound, a.ProductID)
	}
	return &InsufficientStockError{
		ProductID:   p.ProductID,
		ProductName: p.Name,
		Available:   p.Stock,
		Requested:   -a.Delta,
	}
}

func stockUnits(adjs []inventory.Adjustment) int {
	n := 0
	for _, a := range adjs {
		if a.Delta < 0 {
			n -= a.Delta
		} else {
			n += a.Delta
		}
	}
	return n
}

func (s *Service) publish(ctx context.Context, ev events.OrderEvent) {
	ev.EventID = s.newID()
	ev.Timestamp = s.now()
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("order event not published",
			zap.String("event_type", ev.Type),
			zap.String("order_id", ev.OrderID),
			zap.Error(err))
	}
}

package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-order-lifecycle/internal/dynamotest"
	"github.com/imrishuroy/go-order-lifecycle/internal/events"
	"github.com/imrishuroy/go-order-lifecycle/internal/inventory"
	"github.com/imrishuroy/go-order-lifecycle/internal/money"
	"github.com/imrishuroy/go-order-lifecycle/internal/ordernumber"
	"github.com/imrishuroy/go-order-lifecycle/internal/orders"
	"github.com/imrishuroy/go-order-lifecycle/internal/pricing"
)

const (
	ordersTable   = "orders"
	productsTable = "products"
	countersTable = "counters"
	rrIndex       = "refund_request_id-index"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, ev events.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	t        *testing.T
	svc      *Service
	fake     *dynamotest.Fake
	notifier *recordingNotifier
	inv      *inventory.Store
	now      time.Time
}

func newHarness(t *testing.T, products ...inventory.Product) *harness {
	t.Helper()
	fake := dynamotest.New()
	fake.CreateTable(ordersTable, "order_id")
	fake.AddIndex(ordersTable, rrIndex, "refund_request_id")
	fake.CreateTable(productsTable, "product_id")
	fake.CreateTable(countersTable, "counter_id")
	for _, p := range products {
		require.NoError(t, fake.Seed(productsTable, p))
	}

	numbers, err := ordernumber.NewAllocator(fake, countersTable, "ORD")
	require.NoError(t, err)

	var seq atomic.Int64
	notifier := &recordingNotifier{}
	inv := inventory.NewStore(fake, productsTable)
	h := &harness{t: t, fake: fake, notifier: notifier, inv: inv, now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(Deps{
		DynamoDB:  fake,
		Orders:    orders.NewStore(fake, ordersTable, rrIndex),
		Inventory: inv,
		Numbers:   numbers,
		Pricing:   pricing.NewValidator(pricing.DefaultTolerance),
		Notifier:  notifier,
		Clock:     func() time.Time { return h.now },
		NewID: func() string {
			return fmt.Sprintf("id-%03d", seq.Add(1))
		},
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func product(id string, price string, stock int) inventory.Product {
	return inventory.Product{ProductID: id, Name: "Product " + id, Price: money.MustParse(price), Stock: stock}
}

func (h *harness) setStock(id string, stock int) {
	h.t.Helper()
	p, err := h.inv.Get(context.Background(), id)
	require.NoError(h.t, err)
	require.NotNil(h.t, p)
	p.Stock = stock
	require.NoError(h.t, h.fake.Seed(productsTable, p))
}

func (h *harness) stock(id string) int {
	h.t.Helper()
	p, err := h.inv.Get(context.Background(), id)
	require.NoError(h.t, err)
	require.NotNil(h.t, p)
	return p.Stock
}

func (h *harness) order(id string) *orders.Order {
	h.t.Helper()
	o, err := h.svc.GetOrder(context.Background(), id)
	require.NoError(h.t, err)
	return o
}

func customer() orders.CustomerInfo {
	return orders.CustomerInfo{Name: "Ada Lovelace", Email: "ada@example.com", Address: "1 Analytical St"}
}

func (h *harness) create(subtotal string, lines ...OrderLine) *orders.Order {
	h.t.Helper()
	o, err := h.svc.CreateOrder(context.Background(), CreateOrderCommand{
		UserID:       "user-1",
		CustomerInfo: customer(),
		Items:        lines,
		Pricing:      SubmittedPricing{Subtotal: money.MustParse(subtotal)},
	})
	require.NoError(h.t, err)
	return o
}

func (h *harness) move(orderID string, target orders.Status, revert *Revert) (*TransitionResult, error) {
	return h.svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:      orderID,
		TargetStatus: target,
		Revert:       revert,
		Actor:        "admin-1",
	})
}

func (h *harness) markPaid(orderID string) {
	h.t.Helper()
	paid := orders.PaymentPaid
	_, err := h.svc.ChangeStatus(context.Background(), ChangeStatusCommand{
		OrderID:       orderID,
		TargetStatus:  h.order(orderID).Status,
		PaymentStatus: &paid,
	})
	require.NoError(h.t, err)
}

func deleteProductInput(id string) *dyn.DeleteItemInput {
	table := productsTable
	return &dyn.DeleteItemInput{
		TableName: &table,
		Key:       map[string]types.AttributeValue{"product_id": &types.AttributeValueMemberS{Value: id}},
	}
}

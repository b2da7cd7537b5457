package inventory

import (
	"context"
	"errors"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-order-lifecycle/internal/dynamotest"
	"github.com/imrishuroy/go-order-lifecycle/internal/money"
)

func newTestStore(t *testing.T, products ...Product) (*Store, *dynamotest.Fake) {
	t.Helper()
	fake := dynamotest.New()
	fake.CreateTable("products", "product_id")
	for _, p := range products {
		require.NoError(t, fake.Seed("products", p))
	}
	return NewStore(fake, "products"), fake
}

func stockOf(t *testing.T, s *Store, id string) int {
	t.Helper()
	p, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Stock
}

func TestGet(t *testing.T) {
	s, _ := newTestStore(t, Product{ProductID: "p1", Name: "Mug", Price: money.MustParse("9.90"), Stock: 4})

	p, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Mug", p.Name)
	assert.True(t, p.Price.Equal(money.MustParse("9.9")))

	missing, err := s.Get(context.Background(), "p2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConsolidate(t *testing.T) {
	got := Consolidate([]Adjustment{
		{ProductID: "a", Delta: -2},
		{ProductID: "b", Delta: -1},
		{ProductID: "a", Delta: -3},
		{ProductID: "c", Delta: 1},
		{ProductID: "c", Delta: -1},
	})
	assert.Equal(t, []Adjustment{{ProductID: "a", Delta: -5}, {ProductID: "b", Delta: -1}}, got)
}

func TestTransactItemGuardsNegativeStock(t *testing.T) {
	s, fake := newTestStore(t,
		Product{ProductID: "a", Stock: 5},
		Product{ProductID: "b", Stock: 1},
	)
	ctx := context.Background()

	_, err := fake.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: []types.TransactWriteItem{
		s.TransactItem(Adjustment{ProductID: "a", Delta: -2}),
		s.TransactItem(Adjustment{ProductID: "b", Delta: -2}),
	}})
	var tce *types.TransactionCanceledException
	require.True(t, errors.As(err, &tce))
	assert.Equal(t, 5, stockOf(t, s, "a"))
	assert.Equal(t, 1, stockOf(t, s, "b"))

	_, err = fake.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: []types.TransactWriteItem{
		s.TransactItem(Adjustment{ProductID: "a", Delta: -5}),
		s.TransactItem(Adjustment{ProductID: "b", Delta: 3}),
	}})
	require.NoError(t, err)
	assert.Equal(t, 0, stockOf(t, s, "a"))
	assert.Equal(t, 4, stockOf(t, s, "b"))
}

func TestTransactItemRequiresProduct(t *testing.T) {
	s, fake := newTestStore(t)
	_, err := fake.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{TransactItems: []types.TransactWriteItem{
		s.TransactItem(Adjustment{ProductID: "ghost", Delta: 2}),
	}})
	var tce *types.TransactionCanceledException
	require.True(t, errors.As(err, &tce))
	assert.Equal(t, 0, fake.Len("products"))
}

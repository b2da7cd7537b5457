package dynamotest

import (
	"context"
	"errors"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stockRow struct {
	ProductID string `dynamodbav:"product_id"`
	Stock     int    `dynamodbav:"stock"`
}

func decrement(id string, qty string) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                 strPtr("products"),
		Key:                       map[string]types.AttributeValue{"product_id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:          strPtr("ADD #stock :delta"),
		ConditionExpression:       strPtr("attribute_exists(product_id) AND #stock >= :need"),
		ExpressionAttributeNames:  map[string]string{"#stock": "stock"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":delta": &types.AttributeValueMemberN{Value: "-" + qty}, ":need": &types.AttributeValueMemberN{Value: qty}},
	}}
}

func TestTransactWriteItemsAllOrNothing(t *testing.T) {
	f := New()
	f.CreateTable("products", "product_id")
	require.NoError(t, f.Seed("products", stockRow{ProductID: "a", Stock: 5}))
	require.NoError(t, f.Seed("products", stockRow{ProductID: "b", Stock: 1}))

	_, err := f.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{decrement("a", "2"), decrement("b", "3")},
	})
	var tce *types.TransactionCanceledException
	require.True(t, errors.As(err, &tce))
	require.Len(t, tce.CancellationReasons, 2)
	assert.Equal(t, "None", *tce.CancellationReasons[0].Code)
	assert.Equal(t, "ConditionalCheckFailed", *tce.CancellationReasons[1].Code)

	var row stockRow
	_, err = f.Load("products", "a", &row)
	require.NoError(t, err)
	assert.Equal(t, 5, row.Stock)

	_, err = f.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{decrement("a", "2"), decrement("b", "1")},
	})
	require.NoError(t, err)
	_, err = f.Load("products", "b", &row)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Stock)
}

func TestTransactWriteItemsRejectsDuplicateTargets(t *testing.T) {
	f := New()
	f.CreateTable("products", "product_id")
	require.NoError(t, f.Seed("products", stockRow{ProductID: "a", Stock: 5}))

	_, err := f.TransactWriteItems(context.Background(), &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{decrement("a", "1"), decrement("a", "1")},
	})
	require.Error(t, err)
}

func TestUpdateItemUpsertAndQuery(t *testing.T) {
	f := New()
	f.CreateTable("counters", "counter_id")
	f.AddIndex("counters", "scope-index", "scope")

	for i := 0; i < 2; i++ {
		_, err := f.UpdateItem(context.Background(), &dyn.UpdateItemInput{
			TableName:                 strPtr("counters"),
			Key:                       map[string]types.AttributeValue{"counter_id": &types.AttributeValueMemberS{Value: "c1"}},
			UpdateExpression:          strPtr("SET #scope = :scope ADD #seq :one"),
			ExpressionAttributeNames:  map[string]string{"#seq": "seq", "#scope": "scope"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":one": &types.AttributeValueMemberN{Value: "1"}, ":scope": &types.AttributeValueMemberS{Value: "orders"}},
			ReturnValues:              types.ReturnValueUpdatedNew,
		})
		require.NoError(t, err)
	}
	seq := f.Item("counters", "c1")["seq"].(*types.AttributeValueMemberN)
	assert.Equal(t, "2", seq.Value)

	out, err := f.Query(context.Background(), &dyn.QueryInput{
		TableName:                 strPtr("counters"),
		IndexName:                 strPtr("scope-index"),
		KeyConditionExpression:    strPtr("#scope = :scope"),
		ExpressionAttributeNames:  map[string]string{"#scope": "scope"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":scope": &types.AttributeValueMemberS{Value: "orders"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), out.Count)
}

func TestPutConditionAndInjectedFailure(t *testing.T) {
	f := New()
	f.CreateTable("orders", "order_id")
	put := &dyn.PutItemInput{
		TableName:           strPtr("orders"),
		Item:                map[string]types.AttributeValue{"order_id": &types.AttributeValueMemberS{Value: "o1"}},
		ConditionExpression: strPtr("attribute_not_exists(order_id)"),
	}
	_, err := f.PutItem(context.Background(), put)
	require.NoError(t, err)

	_, err = f.PutItem(context.Background(), put)
	var ccf *types.ConditionalCheckFailedException
	require.True(t, errors.As(err, &ccf))

	boom := errors.New("throttled")
	f.FailNext("GetItem", boom)
	_, err = f.GetItem(context.Background(), &dyn.GetItemInput{
		TableName: strPtr("orders"),
		Key:       map[string]types.AttributeValue{"order_id": &types.AttributeValueMemberS{Value: "o1"}},
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.Len("orders"))
}

func TestBareAndParenthesizedExistenceConditions(t *testing.T) {
	f := New()
	f.CreateTable("orders", "order_id")
	key := map[string]types.AttributeValue{"order_id": &types.AttributeValueMemberS{Value: "o1"}}
	touch := func(cond string) error {
		_, err := f.UpdateItem(context.Background(), &dyn.UpdateItemInput{
			TableName:                 strPtr("orders"),
			Key:                       key,
			UpdateExpression:          strPtr("SET #n = :n"),
			ConditionExpression:       strPtr(cond),
			ExpressionAttributeNames:  map[string]string{"#n": "note"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":n": &types.AttributeValueMemberS{Value: "x"}},
		})
		return err
	}

	var ccf *types.ConditionalCheckFailedException
	require.True(t, errors.As(touch("attribute_exists(order_id)"), &ccf))
	require.True(t, errors.As(touch("(attribute_exists(order_id))"), &ccf))
	assert.Equal(t, 0, f.Len("orders"))

	require.NoError(t, touch("attribute_not_exists(order_id)"))
	require.NoError(t, touch("attribute_exists(order_id)"))
	require.NoError(t, touch("(attribute_exists(order_id)) AND (#n = :n)"))
	require.True(t, errors.As(touch("attribute_not_exists(order_id)"), &ccf))
	assert.Equal(t, 1, f.Len("orders"))
}

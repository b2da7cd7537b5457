// Package inventory reads product stock and builds conditional stock deltas.
//
// Stock is a single counter per product. Deductions are guarded by
// "stock >= quantity" so the counter can never go below zero, and every delta
// is emitted as a TransactWriteItem so that one order's adjustments commit or
// fail together with the order write.
package inventory

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-order-lifecycle/internal/aws"
	"github.com/imrishuroy/go-order-lifecycle/internal/money"
)

// Product is the catalog record as far as the order engine is concerned.
type Product struct {
	ProductID string      `dynamodbav:"product_id"` // PK
	Name      string      `dynamodbav:"name"`
	Image     string      `dynamodbav:"image,omitempty"`
	Price     money.Money `dynamodbav:"price"`
	Stock     int         `dynamodbav:"stock"`
}

// Adjustment is a signed stock delta for one product.
type Adjustment struct {
	ProductID   string
	ProductName string
	Delta       int
}

// Store encapsulates reads and conditional updates on the products table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new inventory Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Get fetches a product with a strongly consistent read. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, productID string) (*Product, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            productKey(productID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Product
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal product %s: %w", productID, err)
	}
	return &p, nil
}

// Consolidate merges adjustments per product, keeping first-seen order and
// dropping zero deltas. A transaction may touch each item only once.
func Consolidate(adjs []Adjustment) []Adjustment {
	index := make(map[string]int, len(adjs))
	out := make([]Adjustment, 0, len(adjs))
	for _, a := range adjs {
		if i, ok := index[a.ProductID]; ok {
			out[i].Delta += a.Delta
			continue
		}
		index[a.ProductID] = len(out)
		out = append(out, a)
	}
	kept := out[:0]
	for _, a := range out {
		if a.Delta != 0 {
			kept = append(kept, a)
		}
	}
	return kept
}

// TransactItem builds the conditional update for one adjustment. Negative
// deltas require the current stock to cover them.
func (s *Store) TransactItem(a Adjustment) types.TransactWriteItem {
	update := &types.Update{
		TableName:                &s.tableName,
		Key:                      productKey(a.ProductID),
		UpdateExpression:         awsString("ADD #stock :delta"),
		ConditionExpression:      awsString("attribute_exists(product_id)"),
		ExpressionAttributeNames: map[string]string{"#stock": "stock"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":delta": &types.AttributeValueMemberN{Value: strconv.Itoa(a.Delta)},
		},
	}
	if a.Delta < 0 {
		update.ConditionExpression = awsString("attribute_exists(product_id) AND #stock >= :need")
		update.ExpressionAttributeValues[":need"] = &types.AttributeValueMemberN{Value: strconv.Itoa(-a.Delta)}
	}
	return types.TransactWriteItem{Update: update}
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }

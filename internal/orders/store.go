package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-order-lifecycle/internal/aws"
)

// ErrMultipleMatches indicates an index lookup expected to be unique was not.
var ErrMultipleMatches = errors.New("orders: multiple orders match")

// Store encapsulates operations on the orders table.
type Store struct {
	client             aws.DynamoDBAPI
	tableName          string
	refundRequestIndex string
	nowFunc            func() time.Time
}

// NewStore creates a new orders Store. refundRequestIndex names the GSI keyed
// by refund_request_id.
func NewStore(client aws.DynamoDBAPI, tableName, refundRequestIndex string) *Store {
	return &Store{
		client:             client,
		tableName:          tableName,
		refundRequestIndex: refundRequestIndex,
		nowFunc:            time.Now,
	}
}

// TableName returns the orders table name.
func (s *Store) TableName() string { return s.tableName }

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return unmarshalOrder(out.Item)
}

// FindByRefundRequestID looks an order up through the refund request index.
// Returns (nil, nil) if no order carries the request.
func (s *Store) FindByRefundRequestID(ctx context.Context, requestID string) (*Order, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:                 &s.tableName,
		IndexName:                 &s.refundRequestIndex,
		KeyConditionExpression:    awsString("#rr = :rr"),
		ExpressionAttributeNames:  map[string]string{"#rr": "refund_request_id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":rr": &types.AttributeValueMemberS{Value: requestID}},
		Limit:                     awsInt32(2),
	})
	if err != nil {
		return nil, fmt.Errorf("query refund request: %w", err)
	}
	switch len(out.Items) {
	case 0:
		return nil, nil
	case 1:
		// GSI items are eventually consistent; re-read the base item.
		o, err := unmarshalOrder(out.Items[0])
		if err != nil {
			return nil, err
		}
		return s.Get(ctx, o.OrderID)
	default:
		return nil, fmt.Errorf("%w: refund request %s", ErrMultipleMatches, requestID)
	}
}

// PutCreate returns a transactional Put that inserts order. It fails the
// transaction if the order id already exists. Version starts at 1.
func (s *Store) PutCreate(order *Order) (types.TransactWriteItem, error) {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Version = 1
	order.Normalize()

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal order item: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.tableName,
			Item:                item,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		},
	}, nil
}

// PutUpdate returns a transactional Put that replaces order only if the stored
// version still matches the one that was read. order.Version is advanced.
func (s *Store) PutUpdate(order *Order) (types.TransactWriteItem, error) {
	expected := order.Version
	order.Version = expected + 1
	order.UpdatedAt = s.nowFunc().UTC()
	order.Normalize()

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		order.Version = expected
		return types.TransactWriteItem{}, fmt.Errorf("marshal order item: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:                &s.tableName,
			Item:                     item,
			ConditionExpression:      awsString("#ver = :expected"),
			ExpressionAttributeNames: map[string]string{"#ver": "version"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
			},
		},
	}, nil
}

// Delete returns a transactional Delete guarded by the order's version.
func (s *Store) Delete(order *Order) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:                &s.tableName,
			Key:                      orderKey(order.OrderID),
			ConditionExpression:      awsString("#ver = :expected"),
			ExpressionAttributeNames: map[string]string{"#ver": "version"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(order.Version, 10)},
			},
		},
	}
}

func unmarshalOrder(item map[string]types.AttributeValue) (*Order, error) {
	var o Order
	if err := attributevalue.UnmarshalMap(item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	o.Normalize()
	return &o, nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }

func awsInt32(v int32) *int32 { return &v }

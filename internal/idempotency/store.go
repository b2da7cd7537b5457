// Package idempotency stores the outcome of order placements keyed by the
// client's Idempotency-Key so that retried requests replay the first response.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-order-lifecycle/internal/aws"
)

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client       aws.DynamoDBAPI
	tableName    string
	ttlWindow    time.Duration // default TTL window when creating entries
	leaseTimeout time.Duration // IN_PROGRESS records older than this can be taken over
	nowFunc      func() time.Time
	newLease     func() string
}

// NewStore returns a configured Store.
// tableName: DynamoDB table name for idempotency entries.
// ttlWindow: default TTL window (e.g., 48*time.Hour)
// leaseTimeout: how long an unfinished attempt keeps the key to itself.
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow, leaseTimeout time.Duration) *Store {
	return &Store{
		client:       client,
		tableName:    tableName,
		ttlWindow:    ttlWindow,
		leaseTimeout: leaseTimeout,
		nowFunc:      time.Now,
		newLease:     uuid.NewString,
	}
}

// ErrConditionFailed indicates a conditional write failed (e.g., attribute_not_exists)
var ErrConditionFailed = errors.New("conditional check failed")

// HashRequest fingerprints a request body so a key reused with a different
// payload can be told apart from a retry.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Begin claims key for a new attempt and returns the lease that attempt
// commits with (see CompleteItem). If another attempt finished or still holds
// the key, the lease is empty and that attempt's record is returned instead.
// The record is nil when the key changed hands while Begin was looking.
//
// An IN_PROGRESS record whose lease timed out is taken over, provided the
// request hash matches. Expired records are replaced.
func (s *Store) Begin(ctx context.Context, key, requestHash string) (string, *Record, error) {
	lease := s.newLease()
	created, err := s.create(ctx, key, requestHash, lease, nil)
	if err != nil {
		return "", nil, err
	}
	if created {
		return lease, nil, nil
	}

	rec, err := s.load(ctx, key)
	if err != nil {
		return "", nil, err
	}
	now := s.nowFunc()
	switch {
	case rec == nil:
		created, err = s.create(ctx, key, requestHash, lease, nil)
	case rec.Expired(now):
		created, err = s.create(ctx, key, requestHash, lease, &rec.ExpiresAt)
	case rec.Status == StatusInProgress && rec.RequestHash == requestHash && now.Sub(rec.UpdatedAt) > s.leaseTimeout:
		created, err = s.takeOver(ctx, key, rec.Lease, lease)
	default:
		return "", rec, nil
	}
	if err != nil {
		return "", nil, err
	}
	if !created {
		rec, err = s.Get(ctx, key)
		return "", rec, err
	}
	return lease, nil, nil
}

// create writes a fresh IN_PROGRESS record. With expiresAt set it replaces
// the expired record carrying that TTL, otherwise the key must be unused.
func (s *Store) create(ctx context.Context, key, requestHash, lease string, expiresAt *int64) (bool, error) {
	now := s.nowFunc().UTC()
	rec := Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		RequestHash:    requestHash,
		Lease:          lease,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	in := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
	}
	if expiresAt != nil {
		in.ConditionExpression = awsString("expires_at = :exp")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":exp": &types.AttributeValueMemberN{Value: strconv.FormatInt(*expiresAt, 10)},
		}
	}
	if _, err := s.client.PutItem(ctx, in); err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

func (s *Store) takeOver(ctx context.Context, key, oldLease, newLease string) (bool, error) {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 recordKey(key),
		UpdateExpression:    awsString("SET lease = :new, updated_at = :ua"),
		ConditionExpression: awsString("#s = :inprogress AND lease = :old"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":old":        &types.AttributeValueMemberS{Value: oldLease},
			":new":        &types.AttributeValueMemberS{Value: newLease},
			":ua":         &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("update item (take over): %w", err)
	}
	return true, nil
}

// Get retrieves an idempotency record by key. If not found or expired, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	rec, err := s.load(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Expired(s.nowFunc()) {
		return nil, nil
	}
	return rec, nil
}

func (s *Store) load(ctx context.Context, key string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            recordKey(key),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// CompleteItem is the transaction write that moves the record to DONE with
// the response to replay. It is meant to ride in the same transaction as the
// order, so the key is completed exactly when the order exists. The write is
// rejected unless the record is still IN_PROGRESS under lease.
func (s *Store) CompleteItem(key, lease, orderID, responseBody string, responseStatus int) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           &s.tableName,
		Key:                 recordKey(key),
		UpdateExpression:    awsString("SET #s = :done, order_id = :oid, response_body = :rb, response_status = :rs, updated_at = :ua"),
		ConditionExpression: awsString("#s = :inprogress AND lease = :lease"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":done":       &types.AttributeValueMemberS{Value: StatusDone},
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":lease":      &types.AttributeValueMemberS{Value: lease},
			":oid":        &types.AttributeValueMemberS{Value: orderID},
			":rb":         &types.AttributeValueMemberS{Value: responseBody},
			":rs":         &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
			":ua":         &types.AttributeValueMemberS{Value: s.nowFunc().UTC().Format(time.RFC3339Nano)},
		},
	}}
}

// Release drops an IN_PROGRESS record held under lease so the client can
// retry after a failure that is known to have written nothing.
func (s *Store) Release(ctx context.Context, key, lease string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 recordKey(key),
		ConditionExpression: awsString("#s = :inprogress AND lease = :lease"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inprogress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":lease":      &types.AttributeValueMemberS{Value: lease},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("delete item (release): %w", err)
	}
	return nil
}

func isConditionFailed(err error) bool {
	var sc smithy.APIError
	return errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException"
}

func recordKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"idempotency_key": &types.AttributeValueMemberS{Value: key},
	}
}

// Helper
func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }

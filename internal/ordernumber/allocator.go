// Package ordernumber allocates human-readable, date-scoped order numbers of
// the form PREFIX-YYYYMMDD-NNN from an atomic per-day counter.
package ordernumber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-order-lifecycle/internal/aws"
)

const (
	dateLayout = "20060102"
	padLength  = 3
	scope      = "orders"
)

// ErrInvalidPrefix is returned when the configured prefix is empty or contains a separator.
var ErrInvalidPrefix = errors.New("ordernumber: invalid prefix")

type counterRecord struct {
	CounterID string `dynamodbav:"counter_id"`
	Seq       int64  `dynamodbav:"seq"`
}

// Allocator hands out order numbers. Each call performs one atomic
// increment, so concurrent callers never receive the same number.
type Allocator struct {
	client    aws.DynamoDBAPI
	tableName string
	prefix    string
}

// NewAllocator returns an Allocator writing counters into tableName.
func NewAllocator(client aws.DynamoDBAPI, tableName, prefix string) (*Allocator, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || strings.Contains(prefix, "-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return &Allocator{client: client, tableName: tableName, prefix: prefix}, nil
}

// Allocate returns the next order number for date's UTC calendar day.
func (a *Allocator) Allocate(ctx context.Context, date time.Time) (string, error) {
	day := date.UTC().Format(dateLayout)
	counterID := scope + "#" + day

	out, err := a.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &a.tableName,
		Key: map[string]types.AttributeValue{
			"counter_id": &types.AttributeValueMemberS{Value: counterID},
		},
		UpdateExpression:         awsString("ADD #seq :one"),
		ExpressionAttributeNames: map[string]string{"#seq": "seq"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return "", fmt.Errorf("increment counter %s: %w", counterID, err)
	}

	var rec counterRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return "", fmt.Errorf("unmarshal counter %s: %w", counterID, err)
	}
	if rec.Seq < 1 {
		return "", fmt.Errorf("counter %s returned no sequence", counterID)
	}
	return Format(a.prefix, date, rec.Seq), nil
}

// Format renders an order number. Sequences above 999 widen naturally.
func Format(prefix string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%0*d", prefix, date.UTC().Format(dateLayout), padLength, seq)
}

func awsString(s string) *string { return &s }

// Package money provides a decimal amount that persists as a DynamoDB number.
package money

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// Money is a currency amount. The zero value is 0.
type Money struct {
	decimal.Decimal
}

var (
	_ attributevalue.Marshaler   = Money{}
	_ attributevalue.Unmarshaler = (*Money)(nil)
)

// Zero is the zero amount.
var Zero = Money{}

// New wraps d.
func New(d decimal.Decimal) Money { return Money{Decimal: d} }

// FromInt returns v whole currency units.
func FromInt(v int64) Money { return Money{Decimal: decimal.NewFromInt(v)} }

// MustParse parses s and panics on failure. Intended for constants and tests.
func MustParse(s string) Money { return Money{Decimal: decimal.RequireFromString(s)} }

// Parse parses a decimal string.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{Decimal: d}, nil
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{Decimal: m.Decimal.Add(o.Decimal)} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{Decimal: m.Decimal.Sub(o.Decimal)} }

// Times multiplies by an item quantity.
func (m Money) Times(qty int) Money {
	return Money{Decimal: m.Decimal.Mul(decimal.NewFromInt(int64(qty)))}
}

// Equal compares amounts numerically, so 10 and 10.00 are equal.
func (m Money) Equal(o Money) bool { return m.Decimal.Equal(o.Decimal) }

// GreaterThan reports whether m > o.
func (m Money) GreaterThan(o Money) bool { return m.Decimal.GreaterThan(o.Decimal) }

// MarshalDynamoDBAttributeValue stores the amount as an N attribute.
func (m Money) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberN{Value: m.Decimal.String()}, nil
}

// UnmarshalDynamoDBAttributeValue accepts N and S attributes; NULL leaves zero.
func (m *Money) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	var raw string
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		raw = v.Value
	case *types.AttributeValueMemberS:
		raw = v.Value
	case *types.AttributeValueMemberNULL:
		*m = Money{}
		return nil
	default:
		return fmt.Errorf("money: unsupported attribute type %T", av)
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Package dynamotest provides an in-memory DynamoDB double for package tests.
//
// It understands the expression forms the stores in this module issue:
// attribute_exists / attribute_not_exists, comparisons against placeholders
// joined with AND, SET / ADD / REMOVE update clauses, equality key conditions
// on tables and global secondary indexes, and all-or-nothing
// TransactWriteItems with per-item cancellation reasons.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-order-lifecycle/internal/aws"
)

var _ aws.DynamoDBAPI = (*Fake)(nil)

type table struct {
	hashKey string
	items   map[string]map[string]types.AttributeValue
	indexes map[string]string
}

// Fake is a goroutine-safe in-memory DynamoDB.
type Fake struct {
	mu       sync.Mutex
	tables   map[string]*table
	injected map[string]error

	TransactCalls int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{
		tables:   map[string]*table{},
		injected: map[string]error{},
	}
}

// CreateTable registers a table keyed by hashKey.
func (f *Fake) CreateTable(name, hashKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{
		hashKey: hashKey,
		items:   map[string]map[string]types.AttributeValue{},
		indexes: map[string]string{},
	}
}

// AddIndex registers a global secondary index on attr.
func (f *Fake) AddIndex(tableName, index, attr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[tableName].indexes[index] = attr
}

// FailNext makes the next call to op (e.g. "TransactWriteItems") return err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injected[op] = err
}

// Seed marshals v and stores it unconditionally.
func (f *Fake) Seed(tableName string, v any) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		return err
	}
	k, err := keyOf(t, item)
	if err != nil {
		return err
	}
	t.items[k] = copyItem(item)
	return nil
}

// Load unmarshals the item stored under key into out. It reports whether the item exists.
func (f *Fake) Load(tableName, key string, out any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(tableName)
	if err != nil {
		return false, err
	}
	item, ok := t.items[key]
	if !ok {
		return false, nil
	}
	return true, attributevalue.UnmarshalMap(item, out)
}

// Item returns a copy of the raw item stored under key, or nil.
func (f *Fake) Item(tableName, key string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[tableName]
	if !ok {
		return nil
	}
	item, ok := t.items[key]
	if !ok {
		return nil
	}
	return copyItem(item)
}

// Len returns the number of items in a table.
func (f *Fake) Len(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[tableName]; ok {
		return len(t.items)
	}
	return 0
}

func (f *Fake) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected("GetItem"); err != nil {
		return nil, err
	}
	t, err := f.table(*in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyOf(t, in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *Fake) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected("PutItem"); err != nil {
		return nil, err
	}
	w := write{table: *in.TableName, put: in.Item, cond: in.ConditionExpression, names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	ok, err := f.check(w)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionalFailed()
	}
	if _, err := f.apply(w); err != nil {
		return nil, err
	}
	return &dyn.PutItemOutput{}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected("UpdateItem"); err != nil {
		return nil, err
	}
	w := write{table: *in.TableName, key: in.Key, update: in.UpdateExpression, cond: in.ConditionExpression, names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	ok, err := f.check(w)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionalFailed()
	}
	item, err := f.apply(w)
	if err != nil {
		return nil, err
	}
	out := &dyn.UpdateItemOutput{}
	if in.ReturnValues != types.ReturnValueNone && in.ReturnValues != "" {
		out.Attributes = copyItem(item)
	}
	return out, nil
}

func (f *Fake) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected("DeleteItem"); err != nil {
		return nil, err
	}
	w := write{table: *in.TableName, key: in.Key, del: true, cond: in.ConditionExpression, names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	ok, err := f.check(w)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionalFailed()
	}
	if _, err := f.apply(w); err != nil {
		return nil, err
	}
	return &dyn.DeleteItemOutput{}, nil
}

var keyCondRe = regexp.MustCompile(`^\s*(#?\w+)\s*=\s*(:\w+)\s*$`)

func (f *Fake) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeInjected("Query"); err != nil {
		return nil, err
	}
	t, err := f.table(*in.TableName)
	if err != nil {
		return nil, err
	}
	attr := t.hashKey
	if in.IndexName != nil {
		a, ok := t.indexes[*in.IndexName]
		if !ok {
			return nil, fmt.Errorf("dynamotest: unknown index %q", *in.IndexName)
		}
		attr = a
	}
	if in.KeyConditionExpression == nil {
		return nil, errors.New("dynamotest: key condition required")
	}
	m := keyCondRe.FindStringSubmatch(*in.KeyConditionExpression)
	if m == nil {
		return nil, fmt.Errorf("dynamotest: unsupported key condition %q", *in.KeyConditionExpression)
	}
	if resolveName(m[1], in.ExpressionAttributeNames) != attr {
		return nil, fmt.Errorf("dynamotest: key condition on %q, index key is %q", m[1], attr)
	}
	want, ok := in.ExpressionAttributeValues[m[2]]
	if !ok {
		return nil, fmt.Errorf("dynamotest: missing value %s", m[2])
	}

	out := &dyn.QueryOutput{}
	for _, item := range t.items {
		if v, ok := item[attr]; ok && compare(v, want) == 0 {
			out.Items = append(out.Items, copyItem(item))
		}
	}
	if in.Limit != nil && int32(len(out.Items)) > *in.Limit {
		out.Items = out.Items[:*in.Limit]
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (f *Fake) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransactCalls++
	if err := f.takeInjected("TransactWriteItems"); err != nil {
		return nil, err
	}
	if len(in.TransactItems) == 0 || len(in.TransactItems) > 100 {
		return nil, fmt.Errorf("dynamotest: transaction must contain 1..100 items, got %d", len(in.TransactItems))
	}

	writes := make([]write, 0, len(in.TransactItems))
	seen := map[string]bool{}
	for i, ti := range in.TransactItems {
		var w write
		switch {
		case ti.Put != nil:
			w = write{table: *ti.Put.TableName, put: ti.Put.Item, cond: ti.Put.ConditionExpression, names: ti.Put.ExpressionAttributeNames, values: ti.Put.ExpressionAttributeValues}
		case ti.Update != nil:
			w = write{table: *ti.Update.TableName, key: ti.Update.Key, update: ti.Update.UpdateExpression, cond: ti.Update.ConditionExpression, names: ti.Update.ExpressionAttributeNames, values: ti.Update.ExpressionAttributeValues}
		case ti.Delete != nil:
			w = write{table: *ti.Delete.TableName, key: ti.Delete.Key, del: true, cond: ti.Delete.ConditionExpression, names: ti.Delete.ExpressionAttributeNames, values: ti.Delete.ExpressionAttributeValues}
		case ti.ConditionCheck != nil:
			w = write{table: *ti.ConditionCheck.TableName, key: ti.ConditionCheck.Key, checkOnly: true, cond: ti.ConditionCheck.ConditionExpression, names: ti.ConditionCheck.ExpressionAttributeNames, values: ti.ConditionCheck.ExpressionAttributeValues}
		default:
			return nil, fmt.Errorf("dynamotest: empty transact item %d", i)
		}
		id, err := f.identity(w)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, fmt.Errorf("dynamotest: ValidationException: transaction contains multiple operations on one item (%s)", id)
		}
		seen[id] = true
		writes = append(writes, w)
	}

	reasons := make([]types.CancellationReason, len(writes))
	cancelled := false
	for i, w := range writes {
		ok, err := f.check(w)
		if err != nil {
			return nil, err
		}
		code := "None"
		if !ok {
			code = "ConditionalCheckFailed"
			cancelled = true
		}
		reasons[i] = types.CancellationReason{Code: strPtr(code)}
	}
	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range writes {
		if w.checkOnly {
			continue
		}
		if _, err := f.apply(w); err != nil {
			return nil, err
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

type write struct {
	table     string
	key       map[string]types.AttributeValue
	put       map[string]types.AttributeValue
	update    *string
	del       bool
	checkOnly bool
	cond      *string
	names     map[string]string
	values    map[string]types.AttributeValue
}

func (f *Fake) table(name string) (*table, error) {
	t, ok := f.tables[name]
	if !ok {
		return nil, fmt.Errorf("dynamotest: ResourceNotFoundException: table %q", name)
	}
	return t, nil
}

func (f *Fake) takeInjected(op string) error {
	if err, ok := f.injected[op]; ok {
		delete(f.injected, op)
		return err
	}
	return nil
}

func (f *Fake) identity(w write) (string, error) {
	t, err := f.table(w.table)
	if err != nil {
		return "", err
	}
	src := w.key
	if w.put != nil {
		src = w.put
	}
	k, err := keyOf(t, src)
	if err != nil {
		return "", err
	}
	return w.table + "/" + k, nil
}

func (f *Fake) current(w write) (*table, string, map[string]types.AttributeValue, error) {
	t, err := f.table(w.table)
	if err != nil {
		return nil, "", nil, err
	}
	src := w.key
	if w.put != nil {
		src = w.put
	}
	k, err := keyOf(t, src)
	if err != nil {
		return nil, "", nil, err
	}
	return t, k, t.items[k], nil
}

func (f *Fake) check(w write) (bool, error) {
	_, _, item, err := f.current(w)
	if err != nil {
		return false, err
	}
	return evalCondition(w.cond, w.names, w.values, item)
}

func (f *Fake) apply(w write) (map[string]types.AttributeValue, error) {
	t, k, item, err := f.current(w)
	if err != nil {
		return nil, err
	}
	switch {
	case w.put != nil:
		t.items[k] = copyItem(w.put)
		return t.items[k], nil
	case w.del:
		delete(t.items, k)
		return nil, nil
	case w.update != nil:
		next := copyItem(item)
		if next == nil {
			next = copyItem(w.key)
		}
		if err := applyUpdate(*w.update, w.names, w.values, next); err != nil {
			return nil, err
		}
		t.items[k] = next
		return next, nil
	}
	return item, nil
}

func keyOf(t *table, item map[string]types.AttributeValue) (string, error) {
	v, ok := item[t.hashKey]
	if !ok {
		return "", fmt.Errorf("dynamotest: missing key attribute %q", t.hashKey)
	}
	switch kv := v.(type) {
	case *types.AttributeValueMemberS:
		return kv.Value, nil
	case *types.AttributeValueMemberN:
		return kv.Value, nil
	}
	return "", fmt.Errorf("dynamotest: unsupported key type %T", v)
}

func resolveName(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		if n, ok := names[token]; ok {
			return n
		}
	}
	return token
}

var (
	existsRe  = regexp.MustCompile(`^(attribute_exists|attribute_not_exists)\(\s*(#?\w+)\s*\)$`)
	compareRe = regexp.MustCompile(`^(#?\w+)\s*(=|<>|>=|<=|>|<)\s*(:\w+)$`)
)

func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		clause = strings.TrimSpace(clause)
		if strings.HasPrefix(clause, "(") && strings.HasSuffix(clause, ")") {
			clause = strings.TrimSpace(clause[1 : len(clause)-1])
		}
		if m := existsRe.FindStringSubmatch(clause); m != nil {
			_, present := item[resolveName(m[2], names)]
			if (m[1] == "attribute_exists") != present {
				return false, nil
			}
			continue
		}
		m := compareRe.FindStringSubmatch(clause)
		if m == nil {
			return false, fmt.Errorf("dynamotest: unsupported condition %q", clause)
		}
		want, ok := values[m[3]]
		if !ok {
			return false, fmt.Errorf("dynamotest: missing value %s", m[3])
		}
		got, ok := item[resolveName(m[1], names)]
		if !ok {
			return false, nil
		}
		c := compare(got, want)
		var pass bool
		switch m[2] {
		case "=":
			pass = c == 0
		case "<>":
			pass = c != 0
		case ">=":
			pass = c >= 0 && c != incomparable
		case "<=":
			pass = c <= 0
		case ">":
			pass = c > 0 && c != incomparable
		case "<":
			pass = c < 0
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}

const incomparable = 2

func compare(a, b types.AttributeValue) int {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return incomparable
		}
		return decimal.RequireFromString(av.Value).Cmp(decimal.RequireFromString(bv.Value))
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return incomparable
		}
		return strings.Compare(av.Value, bv.Value)
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return incomparable
		}
		return 0
	}
	return incomparable
}

var clauseRe = regexp.MustCompile(`\b(SET|ADD|REMOVE)\b`)

func applyUpdate(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) error {
	locs := clauseRe.FindAllStringIndex(expr, -1)
	if len(locs) == 0 {
		return fmt.Errorf("dynamotest: unsupported update %q", expr)
	}
	for i, loc := range locs {
		end := len(expr)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		keyword := expr[loc[0]:loc[1]]
		body := strings.TrimSpace(expr[loc[1]:end])
		for _, part := range strings.Split(body, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			switch keyword {
			case "SET":
				lhs, rhs, ok := strings.Cut(part, "=")
				if !ok {
					return fmt.Errorf("dynamotest: bad SET clause %q", part)
				}
				v, ok := values[strings.TrimSpace(rhs)]
				if !ok {
					return fmt.Errorf("dynamotest: missing value %s", strings.TrimSpace(rhs))
				}
				item[resolveName(strings.TrimSpace(lhs), names)] = v
			case "ADD":
				fields := strings.Fields(part)
				if len(fields) != 2 {
					return fmt.Errorf("dynamotest: bad ADD clause %q", part)
				}
				delta, ok := values[fields[1]].(*types.AttributeValueMemberN)
				if !ok {
					return fmt.Errorf("dynamotest: ADD requires a number for %s", fields[1])
				}
				name := resolveName(fields[0], names)
				sum := decimal.RequireFromString(delta.Value)
				if cur, ok := item[name].(*types.AttributeValueMemberN); ok {
					sum = sum.Add(decimal.RequireFromString(cur.Value))
				}
				item[name] = &types.AttributeValueMemberN{Value: sum.String()}
			case "REMOVE":
				delete(item, resolveName(part, names))
			}
		}
	}
	return nil
}

func conditionalFailed() error {
	return &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v types.AttributeValue) types.AttributeValue {
	switch tv := v.(type) {
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: copyItem(tv.Value)}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(tv.Value))
		for i, e := range tv.Value {
			l[i] = copyValue(e)
		}
		return &types.AttributeValueMemberL{Value: l}
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: tv.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: tv.Value}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: tv.Value}
	}
	return v
}

func strPtr(s string) *string { return &s }

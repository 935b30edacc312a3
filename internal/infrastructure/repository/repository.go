// Package repository maps domain entities onto the single table. Each entity
// has a record type carrying its key attributes next to the payload; converters
// translate between records and domain values.
package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
)

// ErrCounterCapped is returned when a guarded increment would pass its bound.
var ErrCounterCapped = errors.New("counter already at its limit")

func marshal(record any) (store.Item, error) {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", record, err)
	}
	return item, nil
}

func getRecord[R any](ctx context.Context, st store.Store, key store.Key, notFound error) (*R, error) {
	item, err := st.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}
	return decode[R](item)
}

func queryRecords[R any](ctx context.Context, st store.Store, q store.Query) ([]R, error) {
	items, err := st.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]R, 0, len(items))
	for _, item := range items {
		r, err := decode[R](item)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func decode[R any](item store.Item) (*R, error) {
	var r R
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal %T: %w", r, err)
	}
	return &r, nil
}

// allowed filters changes down to the attributes in allow and converts every
// value to the type of the matching field of record R. Unknown attributes and
// values of the wrong type are rejected before anything is written, so a bad
// request cannot leave a record that no longer decodes.
func allowed[R any](changes map[string]any, allow ...string) (map[string]any, error) {
	fields := recordFields[R]()
	out := make(map[string]any, len(changes))
	for name, v := range changes {
		if !slices.Contains(allow, name) {
			return nil, domain.Validation("Field %s cannot be updated", name)
		}
		t, ok := fields[name]
		if !ok {
			return nil, fmt.Errorf("%s is not an attribute of %T", name, *new(R))
		}
		typed, err := convertTo(v, t)
		if err != nil {
			return nil, domain.Validation("Field %s has an invalid value", name)
		}
		out[name] = typed
	}
	return out, nil
}

// recordFields maps attribute names to the Go types of record R's fields.
func recordFields[R any]() map[string]reflect.Type {
	t := reflect.TypeFor[R]()
	fields := make(map[string]reflect.Type, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("dynamodbav"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = f.Type
	}
	return fields
}

var errNullValue = errors.New("null value")

// convertTo round-trips v through its attribute value into a value of type t.
// Numbers are not accepted for string fields and null is never accepted.
func convertTo(v any, t reflect.Type) (any, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, err
	}
	switch av.(type) {
	case *types.AttributeValueMemberNULL:
		return nil, errNullValue
	case *types.AttributeValueMemberN:
		if t.Kind() == reflect.String {
			return nil, &attributevalue.UnmarshalTypeError{Value: "number", Type: t}
		}
	}
	ptr := reflect.New(t)
	if err := attributevalue.Unmarshal(av, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

func isConditionFailed(err error) bool {
	return errors.Is(err, store.ErrConditionFailed)
}

// deleteAll removes the given keys in transactions of at most batch writes.
func deleteAll(ctx context.Context, st store.Store, keys []store.Key) error {
	const batch = 100
	for start := 0; start < len(keys); start += batch {
		end := min(start+batch, len(keys))
		ops := make([]store.WriteOp, 0, end-start)
		for _, k := range keys[start:end] {
			ops = append(ops, store.WriteOp{Delete: &store.Delete{Key: k}})
		}
		if err := st.Transact(ctx, ops...); err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
	}
	return nil
}

// Package store defines the single-table contract shared by the DynamoDB and
// the embedded implementations. Items are plain DynamoDB attribute maps so
// repositories can marshal them with attributevalue regardless of the backend.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Item = map[string]types.AttributeValue

// Attribute names of the table and its three global secondary indexes.
const (
	AttrPK         = "PK"
	AttrSK         = "SK"
	AttrGSI1PK     = "GSI1PK"
	AttrGSI1SK     = "GSI1SK"
	AttrGSI2PK     = "GSI2PK"
	AttrGSI2SK     = "GSI2SK"
	AttrGSI3PK     = "GSI3PK"
	AttrGSI3SK     = "GSI3SK"
	AttrEntityType = "EntityType"
	AttrTTL        = "ttl"
)

type Index string

const (
	Primary Index = ""
	GSI1    Index = "GSI1"
	GSI2    Index = "GSI2"
	GSI3    Index = "GSI3"
)

var Indexes = []Index{GSI1, GSI2, GSI3}

// KeyAttrs returns the partition and sort attribute names of an index.
func (i Index) KeyAttrs() (pk, sk string) {
	switch i {
	case GSI1:
		return AttrGSI1PK, AttrGSI1SK
	case GSI2:
		return AttrGSI2PK, AttrGSI2SK
	case GSI3:
		return AttrGSI3PK, AttrGSI3SK
	default:
		return AttrPK, AttrSK
	}
}

var (
	ErrNotFound        = errors.New("store: item not found")
	ErrConditionFailed = errors.New("store: condition failed")
)

// ConditionError reports which write of a transaction failed its condition.
// Op is -1 for single-item writes.
type ConditionError struct {
	Op int
}

func (e *ConditionError) Error() string {
	if e.Op < 0 {
		return ErrConditionFailed.Error()
	}
	return fmt.Sprintf("%s (op %d)", ErrConditionFailed, e.Op)
}

func (e *ConditionError) Is(target error) bool {
	return target == ErrConditionFailed
}

// FailedOp returns the index of the failed transaction write, or -1.
func FailedOp(err error) int {
	var ce *ConditionError
	if errors.As(err, &ce) {
		return ce.Op
	}
	return -1
}

type Key struct {
	PK string
	SK string
}

func (k Key) Item() Item {
	return Item{
		AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

func KeyOf(item Item) Key {
	return Key{PK: StringAttr(item, AttrPK), SK: StringAttr(item, AttrSK)}
}

func StringAttr(item Item, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

type Condition int

const (
	Always Condition = iota
	IfNotExists
	IfExists
)

type Comparison int

const (
	LessThan Comparison = iota
	GreaterThan
	Equal
)

// Guard is an extra predicate on the stored item, evaluated before a write.
// It compares Attr against another attribute (OtherAttr) or a constant (Value).
type Guard struct {
	Attr      string
	Cmp       Comparison
	OtherAttr string
	Value     any
}

type Put struct {
	Item Item
	Cond Condition
}

type Update struct {
	Key    Key
	Set    map[string]any
	Remove []string
	// Add applies atomic numeric increments; negative values decrement.
	Add    map[string]int
	Cond   Condition
	Guards []Guard
}

type Delete struct {
	Key  Key
	Cond Condition
}

// WriteOp is one member of a transaction; exactly one field is set.
type WriteOp struct {
	Put    *Put
	Update *Update
	Delete *Delete
}

type Query struct {
	Index      Index
	PK         string
	SKPrefix   string
	Descending bool
	// Limit caps the number of returned items; zero means all.
	Limit int
}

type Store interface {
	Get(ctx context.Context, key Key) (Item, error)
	Put(ctx context.Context, p Put) error
	// Update returns the item as stored after the update.
	Update(ctx context.Context, u Update) (Item, error)
	// Delete of an absent item succeeds unless Cond requires existence.
	Delete(ctx context.Context, d Delete) error
	Query(ctx context.Context, q Query) ([]Item, error)
	// Transact applies all writes or none. A failed condition yields a
	// *ConditionError naming the op.
	Transact(ctx context.Context, ops ...WriteOp) error
}

// Transactor is the slice of Store needed by use cases that compose writes
// from several repositories.
type Transactor interface {
	Transact(ctx context.Context, ops ...WriteOp) error
}

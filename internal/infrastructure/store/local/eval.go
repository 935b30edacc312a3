package local

import (
	"fmt"
	"maps"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"learnplatform/internal/infrastructure/store"
)

func conditionHolds(cond store.Condition, current store.Item) bool {
	switch cond {
	case store.IfExists:
		return current != nil
	case store.IfNotExists:
		return current == nil
	default:
		return true
	}
}

// guardsHold evaluates guards the way DynamoDB does: a comparison involving a
// missing attribute or mismatched types is false.
func guardsHold(guards []store.Guard, current store.Item) (bool, error) {
	for _, g := range guards {
		left, ok := current[g.Attr]
		if !ok {
			return false, nil
		}
		var right types.AttributeValue
		if g.OtherAttr != "" {
			if right, ok = current[g.OtherAttr]; !ok {
				return false, nil
			}
		} else {
			av, err := attributevalue.Marshal(g.Value)
			if err != nil {
				return false, fmt.Errorf("marshal guard value for %s: %w", g.Attr, err)
			}
			right = av
		}
		c, ok := compare(left, right)
		if !ok {
			return false, nil
		}
		switch g.Cmp {
		case store.LessThan:
			ok = c < 0
		case store.GreaterThan:
			ok = c > 0
		case store.Equal:
			ok = c == 0
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return 1, ok
		}
		return 0, true
	}
	return 0, false
}

// applyUpdate returns the item that results from u. A nil current item is
// created from the update key.
func applyUpdate(current store.Item, u *store.Update) (store.Item, error) {
	next := make(store.Item, len(current)+len(u.Set)+2)
	if current == nil {
		maps.Copy(next, u.Key.Item())
	} else {
		maps.Copy(next, current)
	}
	for name, v := range u.Set {
		if name == store.AttrPK || name == store.AttrSK {
			return nil, fmt.Errorf("cannot update key attribute %s", name)
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", name, err)
		}
		next[name] = av
	}
	for _, name := range u.Remove {
		delete(next, name)
	}
	for name, delta := range u.Add {
		var base float64
		if existing, ok := next[name]; ok {
			n, ok := existing.(*types.AttributeValueMemberN)
			if !ok {
				return nil, fmt.Errorf("cannot add to non-numeric attribute %s", name)
			}
			f, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", name, err)
			}
			base = f
		}
		next[name] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(base+float64(delta), 'f', -1, 64)}
	}
	return next, nil
}

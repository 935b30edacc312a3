package dynamo

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"learnplatform/internal/infrastructure/store"
)

func conditionOf(cond store.Condition, guards []store.Guard) (expression.ConditionBuilder, bool) {
	var conds []expression.ConditionBuilder
	switch cond {
	case store.IfExists:
		conds = append(conds, expression.AttributeExists(expression.Name(store.AttrPK)))
	case store.IfNotExists:
		conds = append(conds, expression.AttributeNotExists(expression.Name(store.AttrPK)))
	}
	for _, g := range guards {
		left := expression.Name(g.Attr)
		var right expression.OperandBuilder = expression.Value(g.Value)
		if g.OtherAttr != "" {
			right = expression.Name(g.OtherAttr)
		}
		switch g.Cmp {
		case store.LessThan:
			conds = append(conds, left.LessThan(right))
		case store.GreaterThan:
			conds = append(conds, left.GreaterThan(right))
		default:
			conds = append(conds, left.Equal(right))
		}
	}
	switch len(conds) {
	case 0:
		return expression.ConditionBuilder{}, false
	case 1:
		return conds[0], true
	default:
		return expression.And(conds[0], conds[1], conds[2:]...), true
	}
}

func conditionExpr(cond store.Condition) (*expression.Expression, error) {
	c, ok := conditionOf(cond, nil)
	if !ok {
		return nil, nil
	}
	expr, err := expression.NewBuilder().WithCondition(c).Build()
	if err != nil {
		return nil, fmt.Errorf("build condition: %w", err)
	}
	return &expr, nil
}

func updateExpr(u store.Update) (expression.Expression, error) {
	if len(u.Set)+len(u.Remove)+len(u.Add) == 0 {
		return expression.Expression{}, errors.New("update has no changes")
	}
	var ub expression.UpdateBuilder
	for name, v := range u.Set {
		ub = ub.Set(expression.Name(name), expression.Value(v))
	}
	for _, name := range u.Remove {
		ub = ub.Remove(expression.Name(name))
	}
	for name, delta := range u.Add {
		ub = ub.Add(expression.Name(name), expression.Value(delta))
	}
	b := expression.NewBuilder().WithUpdate(ub)
	if c, ok := conditionOf(u.Cond, u.Guards); ok {
		b = b.WithCondition(c)
	}
	expr, err := b.Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("build update: %w", err)
	}
	return expr, nil
}

func queryExpr(q store.Query) (expression.Expression, error) {
	pkAttr, skAttr := q.Index.KeyAttrs()
	kc := expression.Key(pkAttr).Equal(expression.Value(q.PK))
	if q.SKPrefix != "" {
		kc = kc.And(expression.Key(skAttr).BeginsWith(q.SKPrefix))
	}
	expr, err := expression.NewBuilder().WithKeyCondition(kc).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("build key condition: %w", err)
	}
	return expr, nil
}

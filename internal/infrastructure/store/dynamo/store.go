// Package dynamo implements the single-table store on Amazon DynamoDB.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"learnplatform/internal/infrastructure/store"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

type Store struct {
	api   API
	table string
	log   *zap.Logger
}

var _ store.Store = (*Store)(nil)

func New(api API, table string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{api: api, table: table, log: log}
}

func (s *Store) Get(ctx context.Context, key store.Key) (store.Item, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key.Item(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get %s/%s: %w", key.PK, key.SK, err)
	}
	if len(out.Item) == 0 {
		return nil, store.ErrNotFound
	}
	return out.Item, nil
}

func (s *Store) Put(ctx context.Context, p store.Put) error {
	in := &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: p.Item}
	expr, err := conditionExpr(p.Cond)
	if err != nil {
		return err
	}
	if expr != nil {
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}
	if _, err := s.api.PutItem(ctx, in); err != nil {
		return mapError("put", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, u store.Update) (store.Item, error) {
	expr, err := updateExpr(u)
	if err != nil {
		return nil, err
	}
	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       u.Key.Item(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, mapError("update", err)
	}
	return out.Attributes, nil
}

func (s *Store) Delete(ctx context.Context, d store.Delete) error {
	in := &dynamodb.DeleteItemInput{TableName: aws.String(s.table), Key: d.Key.Item()}
	expr, err := conditionExpr(d.Cond)
	if err != nil {
		return err
	}
	if expr != nil {
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}
	if _, err := s.api.DeleteItem(ctx, in); err != nil {
		return mapError("delete", err)
	}
	return nil
}

// Query follows LastEvaluatedKey until the partition is exhausted or Limit
// items were collected.
func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Item, error) {
	expr, err := queryExpr(q)
	if err != nil {
		return nil, err
	}
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!q.Descending),
	}
	if q.Index != store.Primary {
		in.IndexName = aws.String(string(q.Index))
	}

	var items []store.Item
	for {
		if q.Limit > 0 {
			in.Limit = aws.Int32(int32(q.Limit - len(items)))
		}
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("dynamodb query %s %s: %w", q.Index, q.PK, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 || (q.Limit > 0 && len(items) >= q.Limit) {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

func (s *Store) Transact(ctx context.Context, ops ...store.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	items := make([]types.TransactWriteItem, 0, len(ops))
	for i, op := range ops {
		item, err := s.transactItem(op)
		if err != nil {
			return fmt.Errorf("transaction op %d: %w", i, err)
		}
		items = append(items, item)
	}
	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return mapError("transact", err)
	}
	return nil
}

func (s *Store) transactItem(op store.WriteOp) (types.TransactWriteItem, error) {
	table := aws.String(s.table)
	switch {
	case op.Put != nil:
		put := &types.Put{TableName: table, Item: op.Put.Item}
		expr, err := conditionExpr(op.Put.Cond)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		if expr != nil {
			put.ConditionExpression = expr.Condition()
			put.ExpressionAttributeNames = expr.Names()
			put.ExpressionAttributeValues = expr.Values()
		}
		return types.TransactWriteItem{Put: put}, nil
	case op.Update != nil:
		expr, err := updateExpr(*op.Update)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		return types.TransactWriteItem{Update: &types.Update{
			TableName:                 table,
			Key:                       op.Update.Key.Item(),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		}}, nil
	case op.Delete != nil:
		del := &types.Delete{TableName: table, Key: op.Delete.Key.Item()}
		expr, err := conditionExpr(op.Delete.Cond)
		if err != nil {
			return types.TransactWriteItem{}, err
		}
		if expr != nil {
			del.ConditionExpression = expr.Condition()
			del.ExpressionAttributeNames = expr.Names()
			del.ExpressionAttributeValues = expr.Values()
		}
		return types.TransactWriteItem{Delete: del}, nil
	}
	return types.TransactWriteItem{}, errors.New("empty write op")
}

// mapError converts conditional-check failures into store.ConditionError;
// cancelled transactions report the first op whose condition failed.
func mapError(op string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return &store.ConditionError{Op: -1}
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return &store.ConditionError{Op: i}
			}
		}
	}
	return fmt.Errorf("dynamodb %s: %w", op, err)
}

package dynamo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"learnplatform/internal/infrastructure/store"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.TransactWriteItemsOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DescribeTableOutput)
	return out, args.Error(1)
}

func (m *mockAPI) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.CreateTableOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateTimeToLiveOutput)
	return out, args.Error(1)
}

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func TestGetMissingItem(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		return aws.ToBool(in.ConsistentRead) && aws.ToString(in.TableName) == "tbl"
	})).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := New(api, "tbl", nil).Get(context.Background(), store.Key{PK: "USER#1", SK: "METADATA"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	api.AssertExpectations(t)
}

func TestPutIfNotExists(t *testing.T) {
	api := &mockAPI{}
	api.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return in.ConditionExpression != nil &&
			strings.HasPrefix(*in.ConditionExpression, "attribute_not_exists") &&
			in.ExpressionAttributeNames["#0"] == store.AttrPK
	})).Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")})

	err := New(api, "tbl", nil).Put(context.Background(), store.Put{
		Item: store.Item{"PK": s("A"), "SK": s("B")},
		Cond: store.IfNotExists,
	})
	assert.ErrorIs(t, err, store.ErrConditionFailed)
	assert.Equal(t, -1, store.FailedOp(err))
}

func TestUpdateBuildsExpressions(t *testing.T) {
	api := &mockAPI{}
	var captured *dynamodb.UpdateItemInput
	api.On("UpdateItem", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(*dynamodb.UpdateItemInput)
	}).Return(&dynamodb.UpdateItemOutput{Attributes: store.Item{"PK": s("C")}}, nil)

	out, err := New(api, "tbl", nil).Update(context.Background(), store.Update{
		Key:    store.Key{PK: "C", SK: "METADATA"},
		Add:    map[string]int{"usedCount": 1},
		Cond:   store.IfExists,
		Guards: []store.Guard{{Attr: "usedCount", Cmp: store.LessThan, OtherAttr: "maxUses"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "C", store.StringAttr(out, "PK"))

	require.NotNil(t, captured)
	assert.Equal(t, types.ReturnValueAllNew, captured.ReturnValues)
	assert.Contains(t, aws.ToString(captured.UpdateExpression), "ADD")
	assert.Contains(t, aws.ToString(captured.ConditionExpression), "attribute_exists")
	assert.Contains(t, aws.ToString(captured.ConditionExpression), "<")

	_, err = New(api, "tbl", nil).Update(context.Background(), store.Update{Key: store.Key{PK: "C", SK: "M"}})
	assert.Error(t, err)
}

func TestTransactReportsFailedOp(t *testing.T) {
	api := &mockAPI{}
	api.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
		return len(in.TransactItems) == 3 && in.TransactItems[1].Update != nil
	})).Return(nil, &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")},
			{Code: aws.String("None")},
		},
	})

	err := New(api, "tbl", nil).Transact(context.Background(),
		store.WriteOp{Put: &store.Put{Item: store.Item{"PK": s("P"), "SK": s("1")}, Cond: store.IfNotExists}},
		store.WriteOp{Update: &store.Update{Key: store.Key{PK: "C", SK: "M"}, Add: map[string]int{"n": 1}, Cond: store.IfExists}},
		store.WriteOp{Delete: &store.Delete{Key: store.Key{PK: "D", SK: "M"}}},
	)
	require.ErrorIs(t, err, store.ErrConditionFailed)
	assert.Equal(t, 1, store.FailedOp(err))
}

func TestOtherErrorsAreWrapped(t *testing.T) {
	api := &mockAPI{}
	boom := errors.New("throttled")
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(nil, boom)

	err := New(api, "tbl", nil).Delete(context.Background(), store.Delete{Key: store.Key{PK: "A", SK: "B"}})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, store.ErrConditionFailed)
}

func TestQueryFollowsPagesUntilLimit(t *testing.T) {
	api := &mockAPI{}
	page1 := &dynamodb.QueryOutput{
		Items:            []store.Item{{"SK": s("1")}, {"SK": s("2")}},
		LastEvaluatedKey: store.Item{"PK": s("P"), "SK": s("2")},
	}
	page2 := &dynamodb.QueryOutput{
		Items:            []store.Item{{"SK": s("3")}},
		LastEvaluatedKey: store.Item{"PK": s("P"), "SK": s("3")},
	}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey == nil
	})).Return(page1, nil).Once()
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey != nil && aws.ToString(in.IndexName) == "GSI1" && !aws.ToBool(in.ScanIndexForward)
	})).Return(page2, nil).Once()

	items, err := New(api, "tbl", nil).Query(context.Background(), store.Query{
		Index: store.GSI1, PK: "P", SKPrefix: "X#", Descending: true, Limit: 3,
	})
	require.NoError(t, err)
	assert.Len(t, items, 3)
	api.AssertExpectations(t)
}

func TestEnsureTableSkipsExisting(t *testing.T) {
	api := &mockAPI{}
	api.On("DescribeTable", mock.Anything, mock.Anything).Return(&dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}, nil)

	require.NoError(t, New(api, "tbl", nil).EnsureTable(context.Background()))
	api.AssertNotCalled(t, "CreateTable", mock.Anything, mock.Anything)
}

func TestEnsureTableCreatesIndexesAndTTL(t *testing.T) {
	api := &mockAPI{}
	api.On("DescribeTable", mock.Anything, mock.Anything).
		Return(nil, &types.ResourceNotFoundException{Message: aws.String("missing")}).Once()
	api.On("CreateTable", mock.Anything, mock.MatchedBy(func(in *dynamodb.CreateTableInput) bool {
		return len(in.GlobalSecondaryIndexes) == 3 && in.BillingMode == types.BillingModePayPerRequest
	})).Return(&dynamodb.CreateTableOutput{}, nil)
	api.On("DescribeTable", mock.Anything, mock.Anything).Return(&dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableStatus: types.TableStatusActive},
	}, nil)
	api.On("UpdateTimeToLive", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateTimeToLiveInput) bool {
		return aws.ToString(in.TimeToLiveSpecification.AttributeName) == store.AttrTTL
	})).Return(&dynamodb.UpdateTimeToLiveOutput{}, nil)

	require.NoError(t, New(api, "tbl", nil).EnsureTable(context.Background()))
	api.AssertExpectations(t)
}

package local

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnplatform/internal/infrastructure/store"
)

type record struct {
	PK      string   `dynamodbav:"PK"`
	SK      string   `dynamodbav:"SK"`
	GSI1PK  string   `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK  string   `dynamodbav:"GSI1SK,omitempty"`
	Name    string   `dynamodbav:"name"`
	Count   int      `dynamodbav:"count"`
	Limit   int      `dynamodbav:"limit"`
	Enabled bool     `dynamodbav:"enabled"`
	Tags    []string `dynamodbav:"tags"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func item(t *testing.T, r record) store.Item {
	t.Helper()
	av, err := attributevalue.MarshalMap(r)
	require.NoError(t, err)
	return av
}

func decode(t *testing.T, it store.Item) record {
	t.Helper()
	var r record
	require.NoError(t, attributevalue.UnmarshalMap(it, &r))
	return r
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := record{PK: "A#1", SK: "META", Name: "alpha", Count: 3, Enabled: true, Tags: []string{}}
	require.NoError(t, s.Put(ctx, store.Put{Item: item(t, in)}))

	got, err := s.Get(ctx, store.Key{PK: "A#1", SK: "META"})
	require.NoError(t, err)
	assert.Equal(t, in, decode(t, got))

	_, err = s.Get(ctx, store.Key{PK: "A#1", SK: "OTHER"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPutConditions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	it := item(t, record{PK: "A#1", SK: "META"})

	require.NoError(t, s.Put(ctx, store.Put{Item: it, Cond: store.IfNotExists}))
	err := s.Put(ctx, store.Put{Item: it, Cond: store.IfNotExists})
	assert.ErrorIs(t, err, store.ErrConditionFailed)
	assert.Equal(t, -1, store.FailedOp(err))

	err = s.Put(ctx, store.Put{Item: item(t, record{PK: "B#1", SK: "META"}), Cond: store.IfExists})
	assert.ErrorIs(t, err, store.ErrConditionFailed)
}

func TestUpdateAddAndGuards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := store.Key{PK: "C#1", SK: "META"}
	require.NoError(t, s.Put(ctx, store.Put{Item: item(t, record{PK: key.PK, SK: key.SK, Count: 0, Limit: 2})}))

	incr := store.Update{
		Key:    key,
		Add:    map[string]int{"count": 1},
		Cond:   store.IfExists,
		Guards: []store.Guard{{Attr: "count", Cmp: store.LessThan, OtherAttr: "limit"}},
	}
	for i := 1; i <= 2; i++ {
		out, err := s.Update(ctx, incr)
		require.NoError(t, err)
		assert.Equal(t, i, decode(t, out).Count)
	}
	_, err := s.Update(ctx, incr)
	assert.ErrorIs(t, err, store.ErrConditionFailed)

	out, err := s.Update(ctx, store.Update{
		Key:    key,
		Set:    map[string]any{"name": "capped"},
		Guards: []store.Guard{{Attr: "count", Cmp: store.Equal, Value: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "capped", decode(t, out).Name)

	_, err = s.Update(ctx, store.Update{Key: store.Key{PK: "C#2", SK: "META"}, Add: map[string]int{"count": 1}, Cond: store.IfExists})
	assert.ErrorIs(t, err, store.ErrConditionFailed)
}

func TestUpdateUpsertsWithoutCondition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := store.Key{PK: "D#1", SK: "COUNTER"}

	out, err := s.Update(ctx, store.Update{Key: key, Add: map[string]int{"count": 5}})
	require.NoError(t, err)
	r := decode(t, out)
	assert.Equal(t, "D#1", r.PK)
	assert.Equal(t, 5, r.Count)

	_, err = s.Update(ctx, store.Update{Key: key, Set: map[string]any{"PK": "X"}})
	assert.Error(t, err)
}

func TestIndexFollowsItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, store.Put{Item: item(t, record{PK: "U#1", SK: "META", GSI1PK: "EMAIL#a", GSI1SK: "U#1", Name: "one"})}))

	found, err := s.Query(ctx, store.Query{Index: store.GSI1, PK: "EMAIL#a"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "one", decode(t, found[0]).Name)

	_, err = s.Update(ctx, store.Update{Key: store.Key{PK: "U#1", SK: "META"}, Set: map[string]any{"GSI1PK": "EMAIL#b"}})
	require.NoError(t, err)

	found, err = s.Query(ctx, store.Query{Index: store.GSI1, PK: "EMAIL#a"})
	require.NoError(t, err)
	assert.Empty(t, found)
	found, err = s.Query(ctx, store.Query{Index: store.GSI1, PK: "EMAIL#b"})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, s.Delete(ctx, store.Delete{Key: store.Key{PK: "U#1", SK: "META"}}))
	found, err = s.Query(ctx, store.Query{Index: store.GSI1, PK: "EMAIL#b"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestQueryOrderingPrefixAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, sk := range []string{"SECTION#002", "SECTION#001", "LESSON#x", "SECTION#010", "METADATA"} {
		require.NoError(t, s.Put(ctx, store.Put{Item: item(t, record{PK: "COURSE#1", SK: sk})}))
	}
	require.NoError(t, s.Put(ctx, store.Put{Item: item(t, record{PK: "COURSE#10", SK: "SECTION#001"})}))

	sks := func(items []store.Item) []string {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = store.StringAttr(it, store.AttrSK)
		}
		return out
	}

	got, err := s.Query(ctx, store.Query{PK: "COURSE#1", SKPrefix: "SECTION#"})
	require.NoError(t, err)
	assert.Equal(t, []string{"SECTION#001", "SECTION#002", "SECTION#010"}, sks(got))

	got, err = s.Query(ctx, store.Query{PK: "COURSE#1", SKPrefix: "SECTION#", Descending: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"SECTION#010", "SECTION#002"}, sks(got))

	got, err = s.Query(ctx, store.Query{PK: "COURSE#1"})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestTransactIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, store.Put{Item: item(t, record{PK: "TAKEN", SK: "META"})}))

	err := s.Transact(ctx,
		store.WriteOp{Put: &store.Put{Item: item(t, record{PK: "NEW", SK: "META"}), Cond: store.IfNotExists}},
		store.WriteOp{Update: &store.Update{Key: store.Key{PK: "CNT", SK: "META"}, Add: map[string]int{"count": 1}}},
		store.WriteOp{Put: &store.Put{Item: item(t, record{PK: "TAKEN", SK: "META"}), Cond: store.IfNotExists}},
	)
	require.ErrorIs(t, err, store.ErrConditionFailed)
	assert.Equal(t, 2, store.FailedOp(err))

	_, err = s.Get(ctx, store.Key{PK: "NEW", SK: "META"})
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Get(ctx, store.Key{PK: "CNT", SK: "META"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Transact(ctx,
		store.WriteOp{Put: &store.Put{Item: item(t, record{PK: "NEW", SK: "META"}), Cond: store.IfNotExists}},
		store.WriteOp{Delete: &store.Delete{Key: store.Key{PK: "TAKEN", SK: "META"}, Cond: store.IfExists}},
	)
	require.NoError(t, err)
	_, err = s.Get(ctx, store.Key{PK: "NEW", SK: "META"})
	assert.NoError(t, err)
	_, err = s.Get(ctx, store.Key{PK: "TAKEN", SK: "META"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactRejectsDuplicateKeys(t *testing.T) {
	s := newTestStore(t)
	k := store.Key{PK: "A", SK: "B"}
	err := s.Transact(context.Background(),
		store.WriteOp{Update: &store.Update{Key: k, Add: map[string]int{"count": 1}}},
		store.WriteOp{Delete: &store.Delete{Key: k}},
	)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrConditionFailed)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := store.Key{PK: "HOT", SK: "COUNTER"}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, store.Update{Key: key, Add: map[string]int{"count": 1}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		}
	}
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, succeeded, decode(t, got).Count)
	assert.Positive(t, succeeded)
}

func TestOnDiskReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Options{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, store.Put{Item: item(t, record{PK: "P", SK: "S", Name: "kept"})}))
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, store.Key{PK: "P", SK: "S"})
	require.NoError(t, err)
	assert.Equal(t, "kept", decode(t, got).Name)
}

func TestRejectsInvalidKeys(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), store.Key{PK: "A"})
	assert.Error(t, err)
	err = s.Put(context.Background(), store.Put{Item: item(t, record{PK: "A\x00B", SK: "S"})})
	assert.Error(t, err)
}

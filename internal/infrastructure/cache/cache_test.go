package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"learnplatform/internal/domain"
)

// memRedis implements Client over a map. Expiry is recorded, not enforced.
type memRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
	down bool
}

func newMemRedis() *memRedis {
	return &memRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

var errDown = errors.New("connection refused")

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return redis.NewStringResult("", errDown)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return redis.NewStatusResult("", errDown)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			delete(m.ttl, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return redis.NewIntResult(0, errDown)
	}
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (m *memRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *memRedis) TTL(_ context.Context, key string) *redis.DurationCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	ttl, ok := m.ttl[key]
	if !ok {
		return redis.NewDurationResult(-1, nil)
	}
	return redis.NewDurationResult(ttl, nil)
}

func TestCounterWindow(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	c := NewCounter(rdb)

	for i := int64(1); i <= 3; i++ {
		count, ttl, err := c.Hit(ctx, "login:10.0.0.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Equal(t, time.Minute, ttl)
	}
	assert.Equal(t, time.Minute, rdb.ttl["rate_limit:login:10.0.0.1"])

	count, _, err := c.Hit(ctx, "login:10.0.0.2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCounterRestoresMissingExpiry(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	rdb.data["rate_limit:k"] = "4"

	count, ttl, err := NewCounter(rdb).Hit(ctx, "k", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.Equal(t, 5*time.Minute, ttl)
	assert.Equal(t, 5*time.Minute, rdb.ttl["rate_limit:k"])
}

func TestCounterReportsBackendErrors(t *testing.T) {
	rdb := newMemRedis()
	rdb.down = true
	_, _, err := NewCounter(rdb).Hit(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, errDown)
}

func TestCatalogListingsAreVersioned(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	cat := NewCatalog(rdb, zap.NewNop())

	_, ok := cat.Courses(ctx, "Design", "PUBLISHED", 20)
	assert.False(t, ok)

	courses := []*domain.Course{{ID: "c1", Title: "Color theory", Status: domain.CoursePublished}}
	cat.StoreCourses(ctx, "Design", "PUBLISHED", 20, courses)
	assert.Equal(t, listTTL, rdb.ttl["courses:list:v0:design:PUBLISHED:20"])

	got, ok := cat.Courses(ctx, "design", "PUBLISHED", 20)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Color theory", got[0].Title)

	_, ok = cat.Courses(ctx, "design", "PUBLISHED", 10)
	assert.False(t, ok, "limit is part of the key")

	cat.Invalidate(ctx, "")
	_, ok = cat.Courses(ctx, "design", "PUBLISHED", 20)
	assert.False(t, ok)
}

func TestCatalogOutline(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	cat := NewCatalog(rdb, zap.NewNop())

	outline := &domain.CourseOutline{
		Course: domain.Course{ID: "c1", Title: "Go"},
		Sections: []domain.SectionOutline{{
			Section: domain.Section{ID: "s1", Order: 1},
			Lessons: []domain.Lesson{{ID: "l1", Order: 1}},
		}},
	}
	cat.StoreOutline(ctx, outline)
	assert.Equal(t, detailTTL, rdb.ttl["course:detail:c1"])

	got, ok := cat.Outline(ctx, "c1")
	require.True(t, ok)
	assert.Equal(t, "s1", got.Sections[0].ID)
	assert.Equal(t, "l1", got.Sections[0].Lessons[0].ID)

	cat.Invalidate(ctx, "c1")
	_, ok = cat.Outline(ctx, "c1")
	assert.False(t, ok)
}

func TestCatalogIgnoresCorruptAndUnavailable(t *testing.T) {
	ctx := context.Background()
	rdb := newMemRedis()
	cat := NewCatalog(rdb, zap.NewNop())

	rdb.data["course:detail:c1"] = "{not json"
	_, ok := cat.Outline(ctx, "c1")
	assert.False(t, ok)

	rdb.down = true
	cat.StoreCourses(ctx, "", "", 0, nil)
	_, ok = cat.Courses(ctx, "", "", 0)
	assert.False(t, ok)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"learnplatform/internal/domain"
)

const (
	listPrefix   = "courses:list:"
	versionKey   = "courses:list:version"
	detailPrefix = "course:detail:"

	listTTL   = 10 * time.Minute
	detailTTL = time.Hour
)

// Catalog caches course listings and course outlines. Listings are keyed by a
// version number; bumping it orphans every cached listing at once, and the
// orphans expire with their TTL.
type Catalog struct {
	client Client
	log    *zap.Logger
}

func NewCatalog(client Client, log *zap.Logger) *Catalog {
	return &Catalog{client: client, log: log}
}

func (c *Catalog) Courses(ctx context.Context, category, status string, limit int) ([]*domain.Course, bool) {
	key, ok := c.listKey(ctx, category, status, limit)
	if !ok {
		return nil, false
	}
	var courses []*domain.Course
	if !c.load(ctx, key, &courses) {
		return nil, false
	}
	return courses, true
}

func (c *Catalog) StoreCourses(ctx context.Context, category, status string, limit int, courses []*domain.Course) {
	key, ok := c.listKey(ctx, category, status, limit)
	if !ok {
		return
	}
	c.save(ctx, key, courses, listTTL)
}

func (c *Catalog) Outline(ctx context.Context, courseID string) (*domain.CourseOutline, bool) {
	var outline domain.CourseOutline
	if !c.load(ctx, detailPrefix+courseID, &outline) {
		return nil, false
	}
	return &outline, true
}

func (c *Catalog) StoreOutline(ctx context.Context, outline *domain.CourseOutline) {
	c.save(ctx, detailPrefix+outline.ID, outline, detailTTL)
}

// Invalidate drops the course's outline and every cached listing.
func (c *Catalog) Invalidate(ctx context.Context, courseID string) {
	if courseID != "" {
		if err := c.client.Del(ctx, detailPrefix+courseID).Err(); err != nil {
			c.log.Warn("drop cached course outline", zap.String("courseId", courseID), zap.Error(err))
		}
	}
	if err := c.client.Incr(ctx, versionKey).Err(); err != nil {
		c.log.Warn("bump catalog version", zap.Error(err))
	}
}

func (c *Catalog) listKey(ctx context.Context, category, status string, limit int) (string, bool) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Debug("read catalog version", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("%sv%d:%s:%s:%d", listPrefix, version, strings.ToLower(category), status, limit), true
}

func (c *Catalog) load(ctx context.Context, key string, dst any) bool {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug("catalog cache read", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		c.log.Warn("catalog cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Catalog) save(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Debug("catalog cache write", zap.String("key", key), zap.Error(err))
	}
}

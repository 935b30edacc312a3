// Package usecase holds the application logic behind every endpoint. Use cases
// compose repositories and run multi-record writes as store transactions.
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"learnplatform/internal/domain"
)

// Mailer sends transactional email.
type Mailer interface {
	SendWelcome(ctx context.Context, to, username string) error
	SendPasswordReset(ctx context.Context, to, token string) error
	SendPasswordChanged(ctx context.Context, to string) error
}

// CatalogCache keeps rendered catalog reads. A miss is never an error.
type CatalogCache interface {
	Courses(ctx context.Context, category, status string, limit int) ([]*domain.Course, bool)
	StoreCourses(ctx context.Context, category, status string, limit int, courses []*domain.Course)
	Outline(ctx context.Context, courseID string) (*domain.CourseOutline, bool)
	StoreOutline(ctx context.Context, outline *domain.CourseOutline)
	Invalidate(ctx context.Context, courseID string)
}

// Presigner issues direct-to-bucket upload URLs.
type Presigner interface {
	PresignPut(ctx context.Context, bucket, key, contentType string) (string, time.Time, error)
	ObjectURL(bucket, key string) string
}

const emailTimeout = 30 * time.Second

// sendAsync delivers an email without holding up the request. Failures are
// logged only.
func sendAsync(log *zap.Logger, kind, to string, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			log.Error("email delivery failed", zap.String("email", kind), zap.String("to", to), zap.Error(err))
			return
		}
		log.Info("email sent", zap.String("email", kind), zap.String("to", to))
	}()
}

// noCache is used when no redis is configured.
type noCache struct{}

func (noCache) Courses(context.Context, string, string, int) ([]*domain.Course, bool) {
	return nil, false
}
func (noCache) StoreCourses(context.Context, string, string, int, []*domain.Course) {}
func (noCache) Outline(context.Context, string) (*domain.CourseOutline, bool)       { return nil, false }
func (noCache) StoreOutline(context.Context, *domain.CourseOutline)                 {}
func (noCache) Invalidate(context.Context, string)                                  {}

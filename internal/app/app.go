// Package app assembles the service from configuration: store, cache, mail,
// use cases and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnplatform/config"
	"learnplatform/internal/application/usecase"
	"learnplatform/internal/infrastructure/cache"
	"learnplatform/internal/infrastructure/email"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/infrastructure/security"
	"learnplatform/internal/infrastructure/storage"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/infrastructure/store/dynamo"
	"learnplatform/internal/infrastructure/store/local"
	"learnplatform/internal/middleware"
	handlers "learnplatform/internal/transport/http"
)

const devSecret = "local-dev-secret"

type App struct {
	Router *gin.Engine
	Log    *zap.Logger

	closers []func() error
}

// NewLogger returns a development logger on local and dev stages and a JSON
// production logger elsewhere.
func NewLogger(stage string) (*zap.Logger, error) {
	if stage == "local" || stage == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if !cfg.IsLocal() && (cfg.AccessSecret == "" || cfg.RefreshSecret == "") {
		return nil, errors.New("ACCESS_SECRET and REFRESH_SECRET are required outside the local stage")
	}
	if cfg.AccessSecret == "" {
		cfg.AccessSecret = devSecret + "-access"
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = devSecret + "-refresh"
	}
	if gin.Mode() != gin.TestMode && !cfg.IsLocal() && cfg.Stage != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	a := &App{Log: log}
	st, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Interfaces stay nil without redis so the use cases and the limiter
	// fall back to their no-op behavior.
	var (
		catalog usecase.CatalogCache
		counter middleware.Counter
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		catalog = cache.NewCatalog(rdb, log)
		counter = cache.NewCounter(rdb)
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("REDIS_ADDR not set, catalog cache and rate limiting disabled")
	}

	var mailer usecase.Mailer
	if cfg.SendGridAPIKey != "" {
		mailer = email.NewSender(cfg.SendGridAPIKey, cfg.SenderEmail, cfg.FrontendURL, log)
	} else {
		mailer = email.NewLogSender(log)
	}

	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg.AWSRegion, "")
	if err != nil {
		a.Close()
		return nil, err
	}
	presigner := storage.NewPresigner(awsCfg, time.Duration(cfg.UploadURLTTLMins)*time.Minute)

	now := time.Now
	tokens := security.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret)

	users := repository.NewUserRepository(st)
	courses := repository.NewCourseRepository(st)
	sections := repository.NewSectionRepository(st)
	lessons := repository.NewLessonRepository(st)
	enrollments := repository.NewEnrollmentRepository(st)
	coupons := repository.NewCouponRepository(st)

	sessions := usecase.NewSessionManager(repository.NewSessionRepository(st), tokens, log, now)
	auth := usecase.NewAuthUseCase(users, repository.NewResetTokenRepository(st), sessions,
		security.NewPasswordHasher(0), tokens, st, mailer, log, now)
	resp := handlers.NewResponder(cfg.Stage, log)

	h := handlers.Handlers{
		Auth:  handlers.NewAuthHandler(auth, resp),
		Users: handlers.NewUserHandler(usecase.NewUserUseCase(users, sessions, log, now), auth, resp),
		Courses: handlers.NewCourseHandler(
			usecase.NewCourseUseCase(courses, sections, lessons, st, catalog, log, now), resp),
		Enrollments: handlers.NewEnrollmentHandler(
			usecase.NewEnrollmentUseCase(courses, lessons, enrollments, repository.NewProgressRepository(st), st, catalog, log, now), resp),
		Payments: handlers.NewPaymentHandler(
			usecase.NewCouponUseCase(coupons, courses, log, now),
			usecase.NewPaymentUseCase(courses, coupons, repository.NewPaymentRepository(st), enrollments, st, catalog, log, now), resp),
		Schools: handlers.NewSchoolHandler(usecase.NewSchoolUseCase(repository.NewSchoolRepository(st), users, st, log, now), resp),
		Uploads: handlers.NewUploadHandler(usecase.NewUploadUseCase(presigner, cfg.VideoBucket, cfg.ThumbnailBucket), resp),
	}

	a.Router = handlers.NewRouter(h, handlers.RouterOptions{
		AllowedOrigins: cfg.Origins(),
		Tokens:         tokens,
		Limiter:        middleware.NewRateLimiter(counter, log),
		Log:            log,
	})
	return a, nil
}

// openStore picks the embedded badger store on the local stage, DynamoDB
// Local when an endpoint is set, and managed DynamoDB otherwise.
func (a *App) openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.IsLocal() {
		st, err := local.Open(local.Options{Path: cfg.LocalDBPath, Logger: a.Log})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		a.Log.Info("using embedded store", zap.String("path", cfg.LocalDBPath))
		return st, nil
	}

	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
	if err != nil {
		return nil, err
	}
	st := dynamo.New(dynamo.NewClient(awsCfg, cfg.DynamoEndpoint), cfg.TableName, a.Log)
	if cfg.DynamoEndpoint != "" {
		if err := st.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("bootstrap table: %w", err)
		}
		a.Log.Info("using dynamodb local", zap.String("endpoint", cfg.DynamoEndpoint), zap.String("table", cfg.TableName))
	}
	return st, nil
}

// Close releases the store and redis connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/infrastructure/security"
	"learnplatform/internal/infrastructure/store/local"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	Kind  string
	To    string
	Token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) record(s sentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, s)
	return nil
}

func (m *fakeMailer) SendWelcome(_ context.Context, to, _ string) error {
	return m.record(sentMail{Kind: "welcome", To: to})
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, token string) error {
	return m.record(sentMail{Kind: "reset", To: to, Token: token})
}

func (m *fakeMailer) SendPasswordChanged(_ context.Context, to string) error {
	return m.record(sentMail{Kind: "changed", To: to})
}

func (m *fakeMailer) find(kind, to string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sent {
		if s.Kind == kind && s.To == to {
			return s, true
		}
	}
	return sentMail{}, false
}

type env struct {
	ctx    context.Context
	st     *local.Store
	clock  *clock
	mailer *fakeMailer
	tokens *security.TokenManager

	userRepo       *repository.UserRepository
	sessionRepo    *repository.SessionRepository
	courseRepo     *repository.CourseRepository
	enrollmentRepo *repository.EnrollmentRepository
	couponRepo     *repository.CouponRepository

	sessions    *SessionManager
	auth        *AuthUseCase
	users       *UserUseCase
	courses     *CourseUseCase
	enrollments *EnrollmentUseCase
	coupons     *CouponUseCase
	payments    *PaymentUseCase
	schools     *SchoolUseCase
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st, err := local.Open(local.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clk := &clock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	log := zap.NewNop()
	tokens := security.NewTokenManager("access-secret", "refresh-secret").WithClock(clk.Now)
	mailer := &fakeMailer{}

	e := &env{
		ctx:            context.Background(),
		st:             st,
		clock:          clk,
		mailer:         mailer,
		tokens:         tokens,
		userRepo:       repository.NewUserRepository(st),
		sessionRepo:    repository.NewSessionRepository(st),
		courseRepo:     repository.NewCourseRepository(st),
		enrollmentRepo: repository.NewEnrollmentRepository(st),
		couponRepo:     repository.NewCouponRepository(st),
	}
	sections := repository.NewSectionRepository(st)
	lessons := repository.NewLessonRepository(st)
	progress := repository.NewProgressRepository(st)
	payments := repository.NewPaymentRepository(st)

	e.sessions = NewSessionManager(e.sessionRepo, tokens, log, clk.Now)
	e.auth = NewAuthUseCase(e.userRepo, repository.NewResetTokenRepository(st), e.sessions,
		security.NewPasswordHasher(bcrypt.MinCost), tokens, st, mailer, log, clk.Now)
	e.users = NewUserUseCase(e.userRepo, e.sessions, log, clk.Now)
	e.courses = NewCourseUseCase(e.courseRepo, sections, lessons, st, nil, log, clk.Now)
	e.enrollments = NewEnrollmentUseCase(e.courseRepo, lessons, e.enrollmentRepo, progress, st, nil, log, clk.Now)
	e.coupons = NewCouponUseCase(e.couponRepo, e.courseRepo, log, clk.Now)
	e.payments = NewPaymentUseCase(e.courseRepo, e.couponRepo, payments, e.enrollmentRepo, st, nil, log, clk.Now)
	e.schools = NewSchoolUseCase(repository.NewSchoolRepository(st), e.userRepo, st, log, clk.Now)
	return e
}

func (e *env) register(t *testing.T, username string) *AuthResult {
	t.Helper()
	res, err := e.auth.Register(e.ctx, RegisterInput{
		Email:    username + "@example.com",
		Username: username,
		Password: "correct horse",
	}, domain.DeviceInfo{DeviceName: "laptop"})
	require.NoError(t, err)
	return res
}

// publishedCourse creates a published course with one section of n lessons.
func (e *env) publishedCourse(t *testing.T, price float64, n int) *domain.Course {
	t.Helper()
	c, err := e.courses.Create(e.ctx, "admin", CourseInput{Title: "Go in practice", Category: "Programming", Price: price})
	require.NoError(t, err)
	s, err := e.courses.CreateSection(e.ctx, c.ID, "Basics", "")
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := e.courses.CreateLesson(e.ctx, c.ID, s.ID, LessonInput{Title: "Lesson"})
		require.NoError(t, err)
	}
	c, err = e.courses.Update(e.ctx, c.ID, map[string]any{"status": "PUBLISHED"})
	require.NoError(t, err)
	return c
}

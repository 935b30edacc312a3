package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/infrastructure/security"
)

// SessionManager owns the refresh-token lifecycle. A session is active until
// it expires or is revoked; each refresh rotates its token, and a rotated-out
// token presented again revokes the session.
type SessionManager struct {
	sessions *repository.SessionRepository
	tokens   *security.TokenManager
	log      *zap.Logger
	now      func() time.Time
}

func NewSessionManager(sessions *repository.SessionRepository, tokens *security.TokenManager, log *zap.Logger, now func() time.Time) *SessionManager {
	return &SessionManager{sessions: sessions, tokens: tokens, log: log, now: now}
}

// CreateSession opens a session for the user and returns its id and the first
// refresh token.
func (m *SessionManager) CreateSession(ctx context.Context, userID, email string, device domain.DeviceInfo) (string, string, error) {
	sessionID, err := security.GenerateSessionID()
	if err != nil {
		return "", "", err
	}
	token, _, err := m.tokens.GenerateRefreshToken(security.Subject{UserID: userID, Email: email}, sessionID)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	now := m.now()
	err = m.sessions.Create(ctx, &domain.Session{
		ID:               sessionID,
		UserID:           userID,
		Email:            email,
		RefreshTokenHash: security.HashToken(token),
		Device:           device,
		CreatedAt:        now,
		LastUsedAt:       now,
		ExpiresAt:        now.Add(security.RefreshTokenTTL),
	})
	if err != nil {
		return "", "", err
	}
	return sessionID, token, nil
}

// RotateRefreshToken replaces the session's refresh token with a new one.
// A session revoked in the meantime stays revoked.
func (m *SessionManager) RotateRefreshToken(ctx context.Context, userID, sessionID, email string) (string, error) {
	s, err := m.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	if s.IsExpired(m.now()) {
		if err := m.sessions.Delete(ctx, userID, sessionID); err != nil {
			m.log.Warn("drop expired session", zap.String("sessionId", sessionID), zap.Error(err))
		}
		return "", domain.ErrSessionExpired
	}
	if email != "" {
		s.Email = email
	}
	return m.rotate(ctx, s)
}

func (m *SessionManager) rotate(ctx context.Context, s *domain.Session) (string, error) {
	token, _, err := m.tokens.GenerateRefreshToken(security.Subject{UserID: s.UserID, Email: s.Email}, s.ID)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}
	if err := m.sessions.Rotate(ctx, s, security.HashToken(token), m.now()); err != nil {
		return "", err
	}
	return token, nil
}

// GetSessionByRefreshToken returns the session currently holding token, or
// nil. Expired sessions count as absent and are removed on sight.
func (m *SessionManager) GetSessionByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	s, err := m.sessions.FindByTokenHash(ctx, security.HashToken(token))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.IsExpired(m.now()) {
		if err := m.sessions.Delete(ctx, s.UserID, s.ID); err != nil {
			m.log.Warn("drop expired session", zap.String("sessionId", s.ID), zap.Error(err))
		}
		return nil, nil
	}
	return s, nil
}

// CheckReuse fails with ErrRefreshTokenReused when token was already rotated
// out, revoking the session it belonged to.
func (m *SessionManager) CheckReuse(ctx context.Context, token string) error {
	tomb, err := m.sessions.FindSuperseded(ctx, security.HashToken(token))
	if err != nil {
		return err
	}
	if tomb == nil {
		return nil
	}
	m.log.Warn("refresh token reuse, revoking session",
		zap.String("userId", tomb.UserID), zap.String("sessionId", tomb.SessionID))
	if err := m.sessions.Delete(ctx, tomb.UserID, tomb.SessionID); err != nil {
		return err
	}
	return domain.ErrRefreshTokenReused
}

// Refresh verifies a presented refresh token and rotates it. It returns the
// session and the replacement token.
func (m *SessionManager) Refresh(ctx context.Context, token string) (*domain.Session, string, error) {
	claims, err := m.tokens.VerifyRefreshToken(token)
	if errors.Is(err, security.ErrTokenExpired) {
		return nil, "", domain.ErrSessionExpired
	}
	if err != nil {
		return nil, "", domain.ErrInvalidRefreshToken
	}
	if err := m.CheckReuse(ctx, token); err != nil {
		return nil, "", err
	}
	s, err := m.GetSessionByRefreshToken(ctx, token)
	if err != nil {
		return nil, "", err
	}
	if s == nil || s.ID != claims.SessionID || s.UserID != claims.UserID {
		return nil, "", domain.ErrInvalidRefreshToken
	}
	next, err := m.rotate(ctx, s)
	if err != nil {
		return nil, "", err
	}
	return s, next, nil
}

func (m *SessionManager) GetSession(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	return m.sessions.Get(ctx, userID, sessionID)
}

// RevokeSession is idempotent.
func (m *SessionManager) RevokeSession(ctx context.Context, userID, sessionID string) error {
	return m.sessions.Delete(ctx, userID, sessionID)
}

func (m *SessionManager) RevokeAllUserSessions(ctx context.Context, userID string) error {
	return m.revokeWhere(ctx, userID, func(*domain.Session) bool { return true })
}

// RevokeOtherSessions signs the user out everywhere except keepID.
func (m *SessionManager) RevokeOtherSessions(ctx context.Context, userID, keepID string) error {
	return m.revokeWhere(ctx, userID, func(s *domain.Session) bool { return s.ID != keepID })
}

func (m *SessionManager) revokeWhere(ctx context.Context, userID string, match func(*domain.Session) bool) error {
	sessions, err := m.sessions.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		if !match(s) {
			continue
		}
		g.Go(func() error {
			return m.sessions.Delete(gctx, userID, s.ID)
		})
	}
	return g.Wait()
}

// CleanupExpiredSessions deletes the user's expired sessions and reports how
// many went.
func (m *SessionManager) CleanupExpiredSessions(ctx context.Context, userID string) (int, error) {
	sessions, err := m.sessions.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := m.now()
	removed := 0
	for _, s := range sessions {
		if !s.IsExpired(now) {
			continue
		}
		if err := m.sessions.Delete(ctx, userID, s.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ListSessions returns the user's live sessions, most recently used first.
func (m *SessionManager) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	if n, err := m.CleanupExpiredSessions(ctx, userID); err != nil {
		return nil, err
	} else if n > 0 {
		m.log.Debug("expired sessions removed", zap.String("userId", userID), zap.Int("count", n))
	}
	return m.sessions.ListByUser(ctx, userID)
}

// TouchSession marks the session as used now.
func (m *SessionManager) TouchSession(ctx context.Context, userID, sessionID string) error {
	return m.sessions.Touch(ctx, userID, sessionID, m.now())
}

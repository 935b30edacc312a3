package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/infrastructure/security"
	"learnplatform/internal/infrastructure/store"
)

const ResetTokenTTL = time.Hour

type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is what a successful register or login hands back.
type AuthResult struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	SessionID    string       `json:"sessionId"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	SessionID    string `json:"sessionId"`
}

type AuthUseCase struct {
	users    *repository.UserRepository
	resets   *repository.ResetTokenRepository
	sessions *SessionManager
	hasher   *security.PasswordHasher
	tokens   *security.TokenManager
	tx       store.Transactor
	mailer   Mailer
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthUseCase(
	users *repository.UserRepository,
	resets *repository.ResetTokenRepository,
	sessions *SessionManager,
	hasher *security.PasswordHasher,
	tokens *security.TokenManager,
	tx store.Transactor,
	mailer Mailer,
	log *zap.Logger,
	now func() time.Time,
) *AuthUseCase {
	return &AuthUseCase{
		users:    users,
		resets:   resets,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		tx:       tx,
		mailer:   mailer,
		log:      log,
		now:      now,
	}
}

func (uc *AuthUseCase) Register(ctx context.Context, in RegisterInput, device domain.DeviceInfo) (*AuthResult, error) {
	hash, err := uc.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Username:     strings.ToLower(strings.TrimSpace(in.Username)),
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Roles:        []domain.Role{domain.RoleUser},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	uc.log.Info("user registered", zap.String("userId", user.ID))

	sendAsync(uc.log, "welcome", user.Email, func(ctx context.Context) error {
		return uc.mailer.SendWelcome(ctx, user.Email, user.Username)
	})
	return uc.issue(ctx, user, device)
}

// Login accepts an email or a username as identifier.
func (uc *AuthUseCase) Login(ctx context.Context, identifier, password string, device domain.DeviceInfo) (*AuthResult, error) {
	var (
		user *domain.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = uc.users.GetByEmail(ctx, identifier)
	} else {
		user, err = uc.users.GetByUsername(ctx, identifier)
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if !uc.hasher.Compare(user.PasswordHash, password) {
		return nil, domain.ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	now := uc.now()
	if err := uc.users.TouchLogin(ctx, user.ID, now); err != nil {
		uc.log.Warn("record last login", zap.String("userId", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}
	return uc.issue(ctx, user, device)
}

func (uc *AuthUseCase) issue(ctx context.Context, user *domain.User, device domain.DeviceInfo) (*AuthResult, error) {
	sessionID, refresh, err := uc.sessions.CreateSession(ctx, user.ID, user.Email, device)
	if err != nil {
		return nil, err
	}
	access, err := uc.accessToken(user, sessionID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: access, RefreshToken: refresh, SessionID: sessionID}, nil
}

func (uc *AuthUseCase) accessToken(user *domain.User, sessionID string) (string, error) {
	token, err := uc.tokens.GenerateAccessToken(security.Subject{
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Roles:     user.RoleStrings(),
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return token, nil
}

// Refresh rotates the refresh token and mints an access token carrying the
// user's current roles.
func (uc *AuthUseCase) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	s, next, err := uc.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := uc.users.GetByID(ctx, s.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		_ = uc.sessions.RevokeSession(ctx, s.UserID, s.ID)
		return nil, domain.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	access, err := uc.accessToken(user, s.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: next, SessionID: s.ID}, nil
}

// Logout ends one of the caller's sessions, named either by id or by its
// refresh token. With neither, the session of the access token is ended.
func (uc *AuthUseCase) Logout(ctx context.Context, userID, currentSessionID, refreshToken, sessionID string) error {
	if refreshToken != "" {
		claims, err := uc.tokens.VerifyRefreshToken(refreshToken)
		if err != nil && !errors.Is(err, security.ErrTokenExpired) {
			return domain.ErrInvalidRefreshToken
		}
		if claims != nil {
			if claims.UserID != userID {
				return domain.Forbidden("Session belongs to another user")
			}
			sessionID = claims.SessionID
		}
	}
	if sessionID == "" {
		sessionID = currentSessionID
	}
	if sessionID == "" {
		return domain.Validation("Session id or refresh token is required")
	}
	return uc.sessions.RevokeSession(ctx, userID, sessionID)
}

func (uc *AuthUseCase) LogoutAll(ctx context.Context, userID string) error {
	return uc.sessions.RevokeAllUserSessions(ctx, userID)
}

// Sessions lists the user's live sessions. The session the request was made
// from, when known, is marked as used first.
func (uc *AuthUseCase) Sessions(ctx context.Context, userID, currentSessionID string) ([]*domain.Session, error) {
	if currentSessionID != "" {
		err := uc.sessions.TouchSession(ctx, userID, currentSessionID)
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			uc.log.Warn("touch session", zap.String("sessionId", currentSessionID), zap.Error(err))
		}
	}
	return uc.sessions.ListSessions(ctx, userID)
}

// RevokeSession ends a session the caller owns.
func (uc *AuthUseCase) RevokeSession(ctx context.Context, userID, sessionID string) error {
	if _, err := uc.sessions.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}
	return uc.sessions.RevokeSession(ctx, userID, sessionID)
}

// ForgotPassword never reveals whether the address is registered.
func (uc *AuthUseCase) ForgotPassword(ctx context.Context, email string) error {
	user, err := uc.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		uc.log.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := security.GenerateResetToken()
	if err != nil {
		return err
	}
	now := uc.now()
	err = uc.resets.Create(ctx, &domain.PasswordResetToken{
		TokenHash: security.HashToken(token),
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: now.Add(ResetTokenTTL),
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	sendAsync(uc.log, "password_reset", user.Email, func(ctx context.Context) error {
		return uc.mailer.SendPasswordReset(ctx, user.Email, token)
	})
	return nil
}

// VerifyResetToken returns the stored token when it can still be used.
func (uc *AuthUseCase) VerifyResetToken(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	t, err := uc.resets.Get(ctx, security.HashToken(token))
	if err != nil {
		return nil, err
	}
	if uc.now().After(t.ExpiresAt) {
		return nil, domain.ErrResetTokenExpired
	}
	if t.Used {
		return nil, domain.ErrResetTokenUsed
	}
	return t, nil
}

// ResetPassword consumes the token and sets the password in one transaction,
// then signs the user out everywhere.
func (uc *AuthUseCase) ResetPassword(ctx context.Context, token, newPassword string) error {
	t, err := uc.VerifyResetToken(ctx, token)
	if err != nil {
		return err
	}
	hash, err := uc.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	now := uc.now()
	err = uc.tx.Transact(ctx,
		uc.resets.MarkUsedOp(t.TokenHash, now),
		uc.users.SetPasswordOp(t.UserID, hash, now),
	)
	switch store.FailedOp(err) {
	case 0:
		return domain.ErrResetTokenUsed
	case 1:
		return domain.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	if err := uc.sessions.RevokeAllUserSessions(ctx, t.UserID); err != nil {
		uc.log.Error("revoke sessions after reset", zap.String("userId", t.UserID), zap.Error(err))
	}
	sendAsync(uc.log, "password_changed", t.Email, func(ctx context.Context) error {
		return uc.mailer.SendPasswordChanged(ctx, t.Email)
	})
	return nil
}

// ChangePassword requires the current password and signs out every other
// session.
func (uc *AuthUseCase) ChangePassword(ctx context.Context, userID, currentSessionID, current, next string) error {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !uc.hasher.Compare(user.PasswordHash, current) {
		return domain.Validation("Current password is incorrect")
	}
	hash, err := uc.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := uc.users.SetPassword(ctx, userID, hash, uc.now()); err != nil {
		return err
	}
	if err := uc.sessions.RevokeOtherSessions(ctx, userID, currentSessionID); err != nil {
		uc.log.Error("revoke sessions after password change", zap.String("userId", userID), zap.Error(err))
	}
	sendAsync(uc.log, "password_changed", user.Email, func(ctx context.Context) error {
		return uc.mailer.SendPasswordChanged(ctx, user.Email)
	})
	return nil
}

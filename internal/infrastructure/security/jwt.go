package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour

	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	UserID    string   `json:"userId"`
	Email     string   `json:"email"`
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	Type      string   `json:"type"`
	jwt.RegisteredClaims
}

// Subject is the identity a token pair is issued for. SessionID is optional
// on access tokens.
type Subject struct {
	UserID    string
	Email     string
	Username  string
	Roles     []string
	SessionID string
}

type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

func NewTokenManager(accessSecret, refreshSecret string) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
}

// WithClock replaces the time source, used for both signing and validation.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) GenerateAccessToken(s Subject) (string, error) {
	return m.sign(Claims{
		UserID:    s.UserID,
		Email:     s.Email,
		Username:  s.Username,
		Roles:     s.Roles,
		SessionID: s.SessionID,
		Type:      TypeAccess,
	}, AccessTokenTTL, m.accessSecret)
}

// GenerateRefreshToken issues a refresh token bound to sessionID. Every token
// carries a random jti, so two tokens for the same session never collide.
func (m *TokenManager) GenerateRefreshToken(s Subject, sessionID string) (string, time.Time, error) {
	expiresAt := m.now().Add(RefreshTokenTTL)
	token, err := m.sign(Claims{
		UserID:    s.UserID,
		Email:     s.Email,
		SessionID: sessionID,
		Type:      TypeRefresh,
	}, RefreshTokenTTL, m.refreshSecret)
	return token, expiresAt, err
}

func (m *TokenManager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, m.accessSecret, TypeAccess)
}

func (m *TokenManager) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, m.refreshSecret, TypeRefresh)
}

func (m *TokenManager) sign(c Claims, ttl time.Duration, secret []byte) (string, error) {
	now := m.now()
	jti, err := randomHex(16)
	if err != nil {
		return "", err
	}
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Subject:   c.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", c.Type, err)
	}
	return token, nil
}

func (m *TokenManager) verify(tokenStr string, secret []byte, typ string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if claims.Type != typ || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	if typ == TypeRefresh && claims.SessionID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type sessionRecord struct {
	PK               string    `dynamodbav:"PK"`
	SK               string    `dynamodbav:"SK"`
	GSI1PK           string    `dynamodbav:"GSI1PK"`
	GSI1SK           string    `dynamodbav:"GSI1SK"`
	EntityType       string    `dynamodbav:"EntityType"`
	SessionID        string    `dynamodbav:"sessionId"`
	UserID           string    `dynamodbav:"userId"`
	Email            string    `dynamodbav:"email"`
	RefreshTokenHash string    `dynamodbav:"refreshTokenHash"`
	DeviceName       string    `dynamodbav:"deviceName,omitempty"`
	UserAgent        string    `dynamodbav:"userAgent,omitempty"`
	IPAddress        string    `dynamodbav:"ipAddress,omitempty"`
	CreatedAt        time.Time `dynamodbav:"createdAt"`
	LastUsedAt       time.Time `dynamodbav:"lastUsedAt"`
	ExpiresAt        time.Time `dynamodbav:"expiresAt"`
	TTL              int64     `dynamodbav:"ttl"`
}

type supersededRecord struct {
	PK           string    `dynamodbav:"PK"`
	SK           string    `dynamodbav:"SK"`
	EntityType   string    `dynamodbav:"EntityType"`
	UserID       string    `dynamodbav:"userId"`
	SessionID    string    `dynamodbav:"sessionId"`
	SupersededAt time.Time `dynamodbav:"supersededAt"`
	ExpiresAt    time.Time `dynamodbav:"expiresAt"`
	TTL          int64     `dynamodbav:"ttl"`
}

func toSessionRecord(s *domain.Session) *sessionRecord {
	return &sessionRecord{
		PK:               keys.UserPK(s.UserID),
		SK:               keys.SessionSK(s.ID),
		GSI1PK:           keys.RefreshPK(s.RefreshTokenHash),
		GSI1SK:           keys.SessionSK(s.ID),
		EntityType:       keys.TypeSession,
		SessionID:        s.ID,
		UserID:           s.UserID,
		Email:            s.Email,
		RefreshTokenHash: s.RefreshTokenHash,
		DeviceName:       s.Device.DeviceName,
		UserAgent:        s.Device.UserAgent,
		IPAddress:        s.Device.IPAddress,
		CreatedAt:        s.CreatedAt,
		LastUsedAt:       s.LastUsedAt,
		ExpiresAt:        s.ExpiresAt,
		TTL:              s.ExpiresAt.Unix(),
	}
}

func toDomainSession(r *sessionRecord) *domain.Session {
	return &domain.Session{
		ID:               r.SessionID,
		UserID:           r.UserID,
		Email:            r.Email,
		RefreshTokenHash: r.RefreshTokenHash,
		Device: domain.DeviceInfo{
			DeviceName: r.DeviceName,
			UserAgent:  r.UserAgent,
			IPAddress:  r.IPAddress,
		},
		CreatedAt:  r.CreatedAt,
		LastUsedAt: r.LastUsedAt,
		ExpiresAt:  r.ExpiresAt,
	}
}

type SessionRepository struct {
	st store.Store
}

func NewSessionRepository(st store.Store) *SessionRepository {
	return &SessionRepository{st: st}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	item, err := marshal(toSessionRecord(s))
	if err != nil {
		return err
	}
	if err := r.st.Put(ctx, store.Put{Item: item, Cond: store.IfNotExists}); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	rec, err := getRecord[sessionRecord](ctx, r.st, sessionKey(userID, sessionID), domain.ErrSessionNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainSession(rec), nil
}

// FindByTokenHash returns the session currently holding the refresh token hash.
func (r *SessionRepository) FindByTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	recs, err := queryRecords[sessionRecord](ctx, r.st, store.Query{Index: store.GSI1, PK: keys.RefreshPK(hash), Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("find session by token: %w", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return toDomainSession(&recs[0]), nil
}

// FindSuperseded returns the tombstone of a rotated-out token, or nil.
func (r *SessionRepository) FindSuperseded(ctx context.Context, hash string) (*domain.SupersededToken, error) {
	rec, err := getRecord[supersededRecord](ctx, r.st, store.Key{PK: keys.RefreshPK(hash), SK: keys.Superseded}, store.ErrNotFound)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.SupersededToken{
		TokenHash:    hash,
		UserID:       rec.UserID,
		SessionID:    rec.SessionID,
		SupersededAt: rec.SupersededAt,
		ExpiresAt:    rec.ExpiresAt,
	}, nil
}

// Rotate swaps the session's token hash and leaves a tombstone for the old one
// in a single transaction. It fails with ErrSessionNotFound when the session
// was revoked meanwhile and ErrInvalidRefreshToken when another rotation won.
func (r *SessionRepository) Rotate(ctx context.Context, s *domain.Session, newHash string, now time.Time) error {
	tomb, err := marshal(supersededRecord{
		PK:           keys.RefreshPK(s.RefreshTokenHash),
		SK:           keys.Superseded,
		EntityType:   keys.TypeSupersededToken,
		UserID:       s.UserID,
		SessionID:    s.ID,
		SupersededAt: now,
		ExpiresAt:    s.ExpiresAt,
		TTL:          s.ExpiresAt.Unix(),
	})
	if err != nil {
		return err
	}
	err = r.st.Transact(ctx,
		store.WriteOp{Update: &store.Update{
			Key: sessionKey(s.UserID, s.ID),
			Set: map[string]any{
				"refreshTokenHash": newHash,
				"GSI1PK":           keys.RefreshPK(newHash),
				"lastUsedAt":       now,
			},
			Cond:   store.IfExists,
			Guards: []store.Guard{{Attr: "refreshTokenHash", Cmp: store.Equal, Value: s.RefreshTokenHash}},
		}},
		store.WriteOp{Put: &store.Put{Item: tomb}},
	)
	if store.FailedOp(err) == 0 {
		if _, getErr := r.Get(ctx, s.UserID, s.ID); errors.Is(getErr, domain.ErrSessionNotFound) {
			return domain.ErrSessionNotFound
		}
		return domain.ErrInvalidRefreshToken
	}
	if err != nil {
		return fmt.Errorf("rotate session %s: %w", s.ID, err)
	}
	s.RefreshTokenHash = newHash
	s.LastUsedAt = now
	return nil
}

func (r *SessionRepository) Touch(ctx context.Context, userID, sessionID string, now time.Time) error {
	_, err := r.st.Update(ctx, store.Update{
		Key:  sessionKey(userID, sessionID),
		Set:  map[string]any{"lastUsedAt": now},
		Cond: store.IfExists,
	})
	if isConditionFailed(err) {
		return domain.ErrSessionNotFound
	}
	return err
}

// Delete is idempotent.
func (r *SessionRepository) Delete(ctx context.Context, userID, sessionID string) error {
	if err := r.st.Delete(ctx, store.Delete{Key: sessionKey(userID, sessionID)}); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// ListByUser returns the user's sessions, most recently used first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	recs, err := queryRecords[sessionRecord](ctx, r.st, store.Query{PK: keys.UserPK(userID), SKPrefix: keys.SessionPrefix})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]*domain.Session, 0, len(recs))
	for i := range recs {
		sessions = append(sessions, toDomainSession(&recs[i]))
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastUsedAt.After(sessions[j].LastUsedAt)
	})
	return sessions, nil
}

func sessionKey(userID, sessionID string) store.Key {
	return store.Key{PK: keys.UserPK(userID), SK: keys.SessionSK(sessionID)}
}

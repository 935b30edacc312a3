package repository

import (
	"context"
	"fmt"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type resetTokenRecord struct {
	PK         string     `dynamodbav:"PK"`
	SK         string     `dynamodbav:"SK"`
	EntityType string     `dynamodbav:"EntityType"`
	TokenHash  string     `dynamodbav:"tokenHash"`
	UserID     string     `dynamodbav:"userId"`
	Email      string     `dynamodbav:"email"`
	Used       bool       `dynamodbav:"used"`
	UsedAt     *time.Time `dynamodbav:"usedAt,omitempty"`
	ExpiresAt  time.Time  `dynamodbav:"expiresAt"`
	CreatedAt  time.Time  `dynamodbav:"createdAt"`
	TTL        int64      `dynamodbav:"ttl"`
}

type ResetTokenRepository struct {
	st store.Store
}

func NewResetTokenRepository(st store.Store) *ResetTokenRepository {
	return &ResetTokenRepository{st: st}
}

func (r *ResetTokenRepository) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	item, err := marshal(resetTokenRecord{
		PK:         keys.ResetTokenPK(t.TokenHash),
		SK:         keys.Metadata,
		EntityType: keys.TypeResetToken,
		TokenHash:  t.TokenHash,
		UserID:     t.UserID,
		Email:      t.Email,
		ExpiresAt:  t.ExpiresAt,
		CreatedAt:  t.CreatedAt,
		TTL:        t.ExpiresAt.Unix(),
	})
	if err != nil {
		return err
	}
	if err := r.st.Put(ctx, store.Put{Item: item, Cond: store.IfNotExists}); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

func (r *ResetTokenRepository) Get(ctx context.Context, hash string) (*domain.PasswordResetToken, error) {
	rec, err := getRecord[resetTokenRecord](ctx, r.st, resetTokenKey(hash), domain.ErrResetTokenInvalid)
	if err != nil {
		return nil, err
	}
	return &domain.PasswordResetToken{
		TokenHash: rec.TokenHash,
		UserID:    rec.UserID,
		Email:     rec.Email,
		Used:      rec.Used,
		UsedAt:    rec.UsedAt,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// MarkUsedOp flips used to true only if it is still false, so a token can be
// consumed once even under concurrent resets.
func (r *ResetTokenRepository) MarkUsedOp(hash string, now time.Time) store.WriteOp {
	return store.WriteOp{Update: &store.Update{
		Key:    resetTokenKey(hash),
		Set:    map[string]any{"used": true, "usedAt": now},
		Cond:   store.IfExists,
		Guards: []store.Guard{{Attr: "used", Cmp: store.Equal, Value: false}},
	}}
}

func resetTokenKey(hash string) store.Key {
	return store.Key{PK: keys.ResetTokenPK(hash), SK: keys.Metadata}
}

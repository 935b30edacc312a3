package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
)

const defaultUserPageSize = 50

type UserUseCase struct {
	users    *repository.UserRepository
	sessions *SessionManager
	log      *zap.Logger
	now      func() time.Time
}

func NewUserUseCase(users *repository.UserRepository, sessions *SessionManager, log *zap.Logger, now func() time.Time) *UserUseCase {
	return &UserUseCase{users: users, sessions: sessions, log: log, now: now}
}

func (uc *UserUseCase) Get(ctx context.Context, id string) (*domain.User, error) {
	return uc.users.GetByID(ctx, id)
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, id string, changes map[string]any) (*domain.User, error) {
	if len(changes) == 0 {
		return nil, domain.Validation("No fields to update")
	}
	return uc.users.UpdateProfile(ctx, id, changes, uc.now())
}

// Delete removes the account and everything stored under it. Only the owner
// or a super admin may do so.
func (uc *UserUseCase) Delete(ctx context.Context, actor Actor, id string) error {
	if actor.UserID != id && !actor.IsSuperAdmin() {
		return domain.Forbidden("You can only delete your own account")
	}
	user, err := uc.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := uc.users.Delete(ctx, user); err != nil {
		return err
	}
	uc.log.Info("user deleted", zap.String("userId", id), zap.String("by", actor.UserID))
	return nil
}

// List returns users newest first, or the holders of one role.
func (uc *UserUseCase) List(ctx context.Context, role string, limit int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = defaultUserPageSize
	}
	if role == "" {
		return uc.users.List(ctx, limit)
	}
	r := domain.Role(role)
	if !r.Valid() {
		return nil, domain.Validation("Unknown role %s", role)
	}
	return uc.users.ListByRole(ctx, r, limit)
}

// SetRoles replaces a user's roles. USER is always kept.
func (uc *UserUseCase) SetRoles(ctx context.Context, id string, roles []string) (*domain.User, error) {
	set := []domain.Role{domain.RoleUser}
	for _, name := range roles {
		r := domain.Role(name)
		if !r.Valid() {
			return nil, domain.Validation("Unknown role %s", name)
		}
		set = domain.WithRole(set, r)
	}
	return uc.users.SetRoles(ctx, id, set, uc.now())
}

// SetStatus activates or deactivates an account. Deactivation signs the user
// out everywhere.
func (uc *UserUseCase) SetStatus(ctx context.Context, id string, active bool) (*domain.User, error) {
	user, err := uc.users.SetActive(ctx, id, active, uc.now())
	if err != nil {
		return nil, err
	}
	if !active {
		if err := uc.sessions.RevokeAllUserSessions(ctx, id); err != nil {
			uc.log.Error("revoke sessions of deactivated user", zap.String("userId", id), zap.Error(err))
		}
	}
	return user, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/store"
	"learnplatform/internal/keys"
)

type userRecord struct {
	PK           string     `dynamodbav:"PK"`
	SK           string     `dynamodbav:"SK"`
	GSI1PK       string     `dynamodbav:"GSI1PK"`
	GSI1SK       string     `dynamodbav:"GSI1SK"`
	GSI2PK       string     `dynamodbav:"GSI2PK"`
	GSI2SK       string     `dynamodbav:"GSI2SK"`
	GSI3PK       string     `dynamodbav:"GSI3PK"`
	GSI3SK       string     `dynamodbav:"GSI3SK"`
	EntityType   string     `dynamodbav:"EntityType"`
	UserID       string     `dynamodbav:"userId"`
	Email        string     `dynamodbav:"email"`
	Username     string     `dynamodbav:"username"`
	PasswordHash string     `dynamodbav:"passwordHash"`
	FirstName    string     `dynamodbav:"firstName,omitempty"`
	LastName     string     `dynamodbav:"lastName,omitempty"`
	Bio          string     `dynamodbav:"bio,omitempty"`
	AvatarURL    string     `dynamodbav:"avatarUrl,omitempty"`
	Roles        []string   `dynamodbav:"roles"`
	IsActive     bool       `dynamodbav:"isActive"`
	CreatedAt    time.Time  `dynamodbav:"createdAt"`
	UpdatedAt    time.Time  `dynamodbav:"updatedAt"`
	LastLoginAt  *time.Time `dynamodbav:"lastLoginAt,omitempty"`
}

// mappingRecord reserves a username or email for one user.
type mappingRecord struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	UserID     string `dynamodbav:"userId"`
}

func toUserRecord(u *domain.User) *userRecord {
	return &userRecord{
		PK:           keys.UserPK(u.ID),
		SK:           keys.Metadata,
		GSI1PK:       keys.EmailGSI1PK(u.Email),
		GSI1SK:       keys.UserPK(u.ID),
		GSI2PK:       keys.RoleGSI2PK(string(u.PrimaryRole())),
		GSI2SK:       keys.UsernameGSI2SK(u.Username),
		GSI3PK:       keys.EntityGSI3PK(keys.TypeUser),
		GSI3SK:       keys.TimeKey(u.CreatedAt),
		EntityType:   keys.TypeUser,
		UserID:       u.ID,
		Email:        keys.NormalizeEmail(u.Email),
		Username:     keys.NormalizeUsername(u.Username),
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Bio:          u.Bio,
		AvatarURL:    u.AvatarURL,
		Roles:        u.RoleStrings(),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

func toDomainUser(r *userRecord) *domain.User {
	roles := make([]domain.Role, 0, len(r.Roles))
	for _, role := range r.Roles {
		roles = append(roles, domain.Role(role))
	}
	return &domain.User{
		ID:           r.UserID,
		Email:        r.Email,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Bio:          r.Bio,
		AvatarURL:    r.AvatarURL,
		Roles:        roles,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLoginAt:  r.LastLoginAt,
	}
}

// ProfileFields are the user attributes a user may change directly.
var ProfileFields = []string{"firstName", "lastName", "bio", "avatarUrl"}

type UserRepository struct {
	st store.Store
}

func NewUserRepository(st store.Store) *UserRepository {
	return &UserRepository{st: st}
}

// Create writes the user with its username and email reservations in one
// transaction, so a taken name leaves no user record behind.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	userItem, err := marshal(toUserRecord(user))
	if err != nil {
		return err
	}
	usernameItem, err := marshal(mappingRecord{
		PK: keys.UsernamePK(user.Username), SK: keys.Metadata,
		EntityType: keys.TypeUsername, UserID: user.ID,
	})
	if err != nil {
		return err
	}
	emailItem, err := marshal(mappingRecord{
		PK: keys.EmailPK(user.Email), SK: keys.Metadata,
		EntityType: keys.TypeEmail, UserID: user.ID,
	})
	if err != nil {
		return err
	}

	err = r.st.Transact(ctx,
		store.WriteOp{Put: &store.Put{Item: userItem, Cond: store.IfNotExists}},
		store.WriteOp{Put: &store.Put{Item: usernameItem, Cond: store.IfNotExists}},
		store.WriteOp{Put: &store.Put{Item: emailItem, Cond: store.IfNotExists}},
	)
	switch store.FailedOp(err) {
	case 0:
		return domain.ErrUserAlreadyExists
	case 1:
		return domain.ErrUsernameTaken
	case 2:
		return domain.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	rec, err := getRecord[userRecord](ctx, r.st, store.Key{PK: keys.UserPK(id), SK: keys.Metadata}, domain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return toDomainUser(rec), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.byMapping(ctx, keys.EmailPK(email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.byMapping(ctx, keys.UsernamePK(username))
}

func (r *UserRepository) byMapping(ctx context.Context, pk string) (*domain.User, error) {
	m, err := getRecord[mappingRecord](ctx, r.st, store.Key{PK: pk, SK: keys.Metadata}, domain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, m.UserID)
}

// UpdateProfile applies changes restricted to ProfileFields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, changes map[string]any, now time.Time) (*domain.User, error) {
	set, err := allowed[userRecord](changes, ProfileFields...)
	if err != nil {
		return nil, err
	}
	set["updatedAt"] = now
	return r.update(ctx, id, set)
}

func (r *UserRepository) SetPassword(ctx context.Context, id, hash string, now time.Time) error {
	_, err := r.update(ctx, id, map[string]any{"passwordHash": hash, "updatedAt": now})
	return err
}

// SetPasswordOp is SetPassword as a transaction member.
func (r *UserRepository) SetPasswordOp(id, hash string, now time.Time) store.WriteOp {
	return store.WriteOp{Update: &store.Update{
		Key:  store.Key{PK: keys.UserPK(id), SK: keys.Metadata},
		Set:  map[string]any{"passwordHash": hash, "updatedAt": now},
		Cond: store.IfExists,
	}}
}

// SetRolesOp replaces the role set; the by-role index follows the primary role.
func (r *UserRepository) SetRolesOp(id string, roles []domain.Role, now time.Time) store.WriteOp {
	u := domain.User{Roles: roles}
	return store.WriteOp{Update: &store.Update{
		Key: store.Key{PK: keys.UserPK(id), SK: keys.Metadata},
		Set: map[string]any{
			"roles":     u.RoleStrings(),
			"GSI2PK":    keys.RoleGSI2PK(string(u.PrimaryRole())),
			"updatedAt": now,
		},
		Cond: store.IfExists,
	}}
}

func (r *UserRepository) SetRoles(ctx context.Context, id string, roles []domain.Role, now time.Time) (*domain.User, error) {
	op := r.SetRolesOp(id, roles, now)
	return r.update(ctx, id, op.Update.Set)
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool, now time.Time) (*domain.User, error) {
	return r.update(ctx, id, map[string]any{"isActive": active, "updatedAt": now})
}

func (r *UserRepository) TouchLogin(ctx context.Context, id string, now time.Time) error {
	_, err := r.update(ctx, id, map[string]any{"lastLoginAt": now})
	return err
}

func (r *UserRepository) update(ctx context.Context, id string, set map[string]any) (*domain.User, error) {
	item, err := r.st.Update(ctx, store.Update{
		Key:  store.Key{PK: keys.UserPK(id), SK: keys.Metadata},
		Set:  set,
		Cond: store.IfExists,
	})
	if isConditionFailed(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	rec, err := decode[userRecord](item)
	if err != nil {
		return nil, err
	}
	return toDomainUser(rec), nil
}

// List returns users newest first.
func (r *UserRepository) List(ctx context.Context, limit int) ([]*domain.User, error) {
	return r.list(ctx, store.Query{Index: store.GSI3, PK: keys.EntityGSI3PK(keys.TypeUser), Descending: true, Limit: limit})
}

// ListByRole returns users whose highest role is role, ordered by username.
func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role, limit int) ([]*domain.User, error) {
	return r.list(ctx, store.Query{Index: store.GSI2, PK: keys.RoleGSI2PK(string(role)), Limit: limit})
}

func (r *UserRepository) list(ctx context.Context, q store.Query) ([]*domain.User, error) {
	recs, err := queryRecords[userRecord](ctx, r.st, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]*domain.User, 0, len(recs))
	for i := range recs {
		users = append(users, toDomainUser(&recs[i]))
	}
	return users, nil
}

// Delete removes every record in the user's partition (sessions, enrollments,
// progress, payments) and both name reservations. Deletes run concurrently;
// the user record itself goes last so a failed cascade can be retried.
func (r *UserRepository) Delete(ctx context.Context, user *domain.User) error {
	items, err := r.st.Query(ctx, store.Query{PK: keys.UserPK(user.ID)})
	if err != nil {
		return fmt.Errorf("list user partition: %w", err)
	}
	userKey := store.Key{PK: keys.UserPK(user.ID), SK: keys.Metadata}
	targets := []store.Key{
		{PK: keys.UsernamePK(user.Username), SK: keys.Metadata},
		{PK: keys.EmailPK(user.Email), SK: keys.Metadata},
	}
	for _, item := range items {
		if k := store.KeyOf(item); k != userKey {
			targets = append(targets, k)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(10)
	for _, k := range targets {
		g.Go(func() error {
			return r.st.Delete(gctx, store.Delete{Key: k})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("cascade delete user %s: %w", user.ID, err)
	}
	if err := r.st.Delete(ctx, store.Delete{Key: userKey}); err != nil {
		return fmt.Errorf("delete user %s: %w", user.ID, err)
	}
	return nil
}

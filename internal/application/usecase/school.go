package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/repository"
	"learnplatform/internal/infrastructure/store"
)

type SchoolInput struct {
	Name        string
	Description string
	LogoURL     string
	Website     string
	AdminUserID string
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Roles  []domain.Role
}

func (a Actor) IsSuperAdmin() bool {
	u := domain.User{Roles: a.Roles}
	return u.HasAnyRole(domain.RoleSuperAdmin)
}

type SchoolUseCase struct {
	schools *repository.SchoolRepository
	users   *repository.UserRepository
	tx      store.Transactor
	log     *zap.Logger
	now     func() time.Time
}

func NewSchoolUseCase(schools *repository.SchoolRepository, users *repository.UserRepository, tx store.Transactor, log *zap.Logger, now func() time.Time) *SchoolUseCase {
	return &SchoolUseCase{schools: schools, users: users, tx: tx, log: log, now: now}
}

// Create opens a school run by AdminUserID and grants that user the ADMIN
// role. A user administers at most one school.
func (uc *SchoolUseCase) Create(ctx context.Context, in SchoolInput) (*domain.School, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, domain.Validation("School name is required")
	}
	admin, err := uc.users.GetByID(ctx, in.AdminUserID)
	if err != nil {
		return nil, err
	}
	existing, err := uc.schools.FindByAdmin(ctx, admin.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrSchoolAdminTaken
	}

	now := uc.now()
	school := &domain.School{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		LogoURL:     in.LogoURL,
		Website:     in.Website,
		AdminUserID: admin.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	create, err := uc.schools.CreateOp(school)
	if err != nil {
		return nil, err
	}
	err = uc.tx.Transact(ctx, create, uc.users.SetRolesOp(admin.ID, domain.WithRole(admin.Roles, domain.RoleAdmin), now))
	switch store.FailedOp(err) {
	case 0:
		return nil, domain.Conflict("School already exists")
	case 1:
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("create school: %w", err)
	}
	uc.log.Info("school created", zap.String("schoolId", school.ID), zap.String("adminUserId", admin.ID))
	return school, nil
}

func (uc *SchoolUseCase) List(ctx context.Context) ([]*domain.School, error) {
	return uc.schools.List(ctx)
}

func (uc *SchoolUseCase) Get(ctx context.Context, id string) (*domain.School, error) {
	return uc.schools.Get(ctx, id)
}

// manageable returns the school when actor is a super admin or its admin.
func (uc *SchoolUseCase) manageable(ctx context.Context, actor Actor, id string) (*domain.School, error) {
	school, err := uc.schools.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && school.AdminUserID != actor.UserID {
		return nil, domain.Forbidden("Only the school admin can manage this school")
	}
	return school, nil
}

func (uc *SchoolUseCase) Update(ctx context.Context, actor Actor, id string, changes map[string]any) (*domain.School, error) {
	if len(changes) == 0 {
		return nil, domain.Validation("No fields to update")
	}
	if _, err := uc.manageable(ctx, actor, id); err != nil {
		return nil, err
	}
	return uc.schools.Update(ctx, id, changes, uc.now())
}

// Delete removes the school and its instructor links. The former admin keeps
// the ADMIN role.
func (uc *SchoolUseCase) Delete(ctx context.Context, id string) error {
	if err := uc.schools.Delete(ctx, id); err != nil {
		return err
	}
	uc.log.Info("school deleted", zap.String("schoolId", id))
	return nil
}

func (uc *SchoolUseCase) AddInstructor(ctx context.Context, actor Actor, schoolID, userID string) (*domain.SchoolInstructor, error) {
	if _, err := uc.manageable(ctx, actor, schoolID); err != nil {
		return nil, err
	}
	if _, err := uc.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	in := &domain.SchoolInstructor{
		SchoolID: schoolID,
		UserID:   userID,
		AddedBy:  actor.UserID,
		AddedAt:  uc.now(),
	}
	if err := uc.schools.AddInstructor(ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

func (uc *SchoolUseCase) RemoveInstructor(ctx context.Context, actor Actor, schoolID, userID string) error {
	if _, err := uc.manageable(ctx, actor, schoolID); err != nil {
		return err
	}
	return uc.schools.RemoveInstructor(ctx, schoolID, userID)
}

func (uc *SchoolUseCase) ListInstructors(ctx context.Context, actor Actor, schoolID string) ([]*domain.SchoolInstructor, error) {
	if _, err := uc.manageable(ctx, actor, schoolID); err != nil {
		return nil, err
	}
	return uc.schools.ListInstructors(ctx, schoolID)
}

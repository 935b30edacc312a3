package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnplatform/internal/domain"
)

func TestDeleteUserRemovesEverythingTheyOwn(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")
	course := e.publishedCourse(t, 0, 1)
	_, err := e.enrollments.Enroll(e.ctx, alice.User.ID, course.ID)
	require.NoError(t, err)

	err = e.users.Delete(e.ctx, Actor{UserID: bob.User.ID, Roles: bob.User.Roles}, alice.User.ID)
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindPermission, kind)

	require.NoError(t, e.users.Delete(e.ctx, Actor{UserID: alice.User.ID}, alice.User.ID))

	_, err = e.users.Get(e.ctx, alice.User.ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	sessions, err := e.sessionRepo.ListByUser(e.ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	_, err = e.enrollmentRepo.Get(e.ctx, alice.User.ID, course.ID)
	assert.ErrorIs(t, err, domain.ErrEnrollmentAbsent)
	students, err := e.enrollments.Students(e.ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, students)

	again := e.register(t, "alice")
	assert.NotEqual(t, alice.User.ID, again.User.ID, "name reservations were released")
}

func TestSuperAdminMayDeleteAnyone(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	root := Actor{UserID: "root", Roles: []domain.Role{domain.RoleUser, domain.RoleSuperAdmin}}
	require.NoError(t, e.users.Delete(e.ctx, root, alice.User.ID))
	assert.ErrorIs(t, e.users.Delete(e.ctx, root, alice.User.ID), domain.ErrUserNotFound)
}

func TestUserRolesAndListing(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	e.register(t, "bob")

	_, err := e.users.SetRoles(e.ctx, alice.User.ID, []string{"OWNER"})
	kind, _ := domain.KindOf(err)
	assert.Equal(t, domain.KindValidation, kind)

	u, err := e.users.SetRoles(e.ctx, alice.User.ID, []string{"ADMIN"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.Role{domain.RoleUser, domain.RoleAdmin}, u.Roles)

	admins, err := e.users.List(e.ctx, "ADMIN", 0)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, alice.User.ID, admins[0].ID)

	all, err := e.users.List(e.ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = e.users.List(e.ctx, "GUEST", 0)
	assert.Error(t, err)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")

	_, err := e.users.UpdateProfile(e.ctx, alice.User.ID, map[string]any{})
	assert.Error(t, err)

	u, err := e.users.UpdateProfile(e.ctx, alice.User.ID, map[string]any{"firstName": "Alice", "bio": "teaches Go"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.FirstName)
	assert.Equal(t, "alice", u.Username)
}

package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("register: %w", ErrEmailTaken))
	assert.True(t, ok)
	assert.Equal(t, KindConflict, kind)

	_, ok = KindOf(fmt.Errorf("boom"))
	assert.False(t, ok)

	assert.Equal(t, "Course 42 missing", NotFound("Course %d missing", 42).Error())
}

func TestUserRoles(t *testing.T) {
	u := User{Roles: []Role{RoleUser, RoleAdmin}}
	assert.True(t, u.HasAnyRole(AdminRoles...))
	assert.False(t, u.HasAnyRole(RoleSuperAdmin))
	assert.Equal(t, RoleAdmin, u.PrimaryRole())

	roles := WithRole(u.Roles, RoleAdmin)
	assert.Len(t, roles, 2)
	roles = WithRole(u.Roles, RoleSuperAdmin)
	assert.Len(t, roles, 3)
	assert.Len(t, u.Roles, 2)
}

func TestProgressPercentage(t *testing.T) {
	assert.Equal(t, 0, Progress{}.Percentage())
	assert.Equal(t, 33, Progress{CompletedLessons: 1, TotalLessons: 3}.Percentage())
	assert.Equal(t, 100, Progress{CompletedLessons: 5, TotalLessons: 4}.Percentage())
}

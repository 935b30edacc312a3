package domain

import (
	"time"
)

type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

var AdminRoles = []Role{RoleAdmin, RoleSuperAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func (r Role) rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}

type User struct {
	ID           string     `json:"userId"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	Bio          string     `json:"bio,omitempty"`
	AvatarURL    string     `json:"avatarUrl,omitempty"`
	Roles        []Role     `json:"roles"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

func (u *User) HasAnyRole(roles ...Role) bool {
	for _, have := range u.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// PrimaryRole is the highest role held; it drives the by-role index.
func (u *User) PrimaryRole() Role {
	best := RoleUser
	for _, r := range u.Roles {
		if r.rank() > best.rank() {
			best = r
		}
	}
	return best
}

func (u *User) RoleStrings() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, string(r))
	}
	return out
}

// WithRole returns the role set extended by r, without duplicates.
func WithRole(roles []Role, r Role) []Role {
	for _, have := range roles {
		if have == r {
			return roles
		}
	}
	return append(append([]Role{}, roles...), r)
}

type PasswordResetToken struct {
	TokenHash string     `json:"-"`
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"learnplatform/internal/domain"
	"learnplatform/internal/infrastructure/security"
)

const claimsKey = "claims"

// TokenVerifier checks access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*security.Claims, error)
}

// Authorize accepts requests carrying a valid Bearer access token. With roles
// given, the caller must also hold at least one of them.
func Authorize(tokens TokenVerifier, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims, err := tokens.VerifyAccessToken(parts[1])
		if errors.Is(err, security.ErrTokenExpired) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		if len(roles) > 0 && !holdsAny(claims.Roles, roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func holdsAny(have []string, want []domain.Role) bool {
	for _, h := range have {
		for _, w := range want {
			if h == string(w) {
				return true
			}
		}
	}
	return false
}

func RequireUser(tokens TokenVerifier) gin.HandlerFunc {
	return Authorize(tokens)
}

func RequireAdmin(tokens TokenVerifier) gin.HandlerFunc {
	return Authorize(tokens, domain.AdminRoles...)
}

func RequireSuperAdmin(tokens TokenVerifier) gin.HandlerFunc {
	return Authorize(tokens, domain.RoleSuperAdmin)
}

// ClaimsFromContext returns the claims stored by Authorize.
func ClaimsFromContext(c *gin.Context) (*security.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.Claims)
	return claims, ok
}

package middleware

import (
	"strings"

	"djbook/internal/core/domain"
	"djbook/internal/core/services"
	"djbook/pkg/errors"
	"djbook/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Keys under which the authenticated identity is stored on the gin context.
const (
	ContextUsername = "username"
	ContextRole     = "role"
)

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWith(c, errors.NewUnauthorizedError("authorization header required"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWith(c, err)
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller when a valid token is sent
// and lets anonymous requests through.
func OptionalAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := authService.ValidateToken(token); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole rejects callers whose token role is not one of roles. The
// services re-check against the stored role.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextRole)
		r, _ := role.(domain.Role)
		for _, allowed := range roles {
			if r == allowed {
				c.Next()
				return
			}
		}
		abortWith(c, errors.NewForbiddenError("insufficient role"))
	}
}

// Username returns the authenticated username, or "" for anonymous callers.
func Username(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setIdentity(c *gin.Context, claims *services.Claims) {
	c.Set(ContextUsername, claims.Username)
	c.Set(ContextRole, claims.Role)
	c.Request = c.Request.WithContext(logger.WithUsername(c.Request.Context(), claims.Username))
}

func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/civicsafe/api/internal/auth"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// CurrentIdentity returns the caller set by AuthMiddleware or
// OptionalAuthMiddleware, or nil for an anonymous request.
func CurrentIdentity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

// SetIdentity attaches id to the request context.
func SetIdentity(c *gin.Context, id *auth.Identity) {
	c.Set(identityKey, id)
}

func bearerIdentity(c *gin.Context, jwtSecret string) (*auth.Identity, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, "authorization header required"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, "invalid authorization header format"
	}

	claims, err := auth.ValidateAccessToken(parts[1], jwtSecret)
	if err != nil {
		return nil, "invalid or expired token"
	}

	id, err := auth.IdentityFromClaims(claims)
	if err != nil {
		return nil, "invalid or expired token"
	}
	return id, ""
}

// AuthMiddleware requires a valid JWT token
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, reason := bearerIdentity(c, jwtSecret)
		if id == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": reason})
			c.Abort()
			return
		}

		SetIdentity(c, id)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := CurrentIdentity(c)
		if id == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if !id.HasRole(roles...) {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware extracts user info if token is present, but doesn't require it
func OptionalAuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, _ := bearerIdentity(c, jwtSecret); id != nil {
			SetIdentity(c, id)
		}
		c.Next()
	}
}

package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"marketplace-service/common/auth"

	"github.com/gin-gonic/gin"
)

const (
	UserContextKey  = "userID"
	RoleContextKey  = "role"
	EmailContextKey = "email"
	AdminRole       = "admin"
)

// GatewaySecretHeader carries the secret shared with the API gateway. The
// X-User-* identity headers are only honoured when it matches.
const GatewaySecretHeader = "X-Gateway-Secret"

type AuthConfig struct {
	JWTSecret []byte
	// GatewaySecret enables gateway identity headers. Empty means every
	// request must carry a bearer token.
	GatewaySecret string
}

// AuthMiddleware trusts identity headers injected by the API gateway when the
// request proves it came through the gateway, and otherwise requires a bearer
// token signed with cfg.JWTSecret.
func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID, role, email string

		if fromGateway(c, cfg.GatewaySecret) {
			userID = c.GetHeader("X-User-ID")
			role = c.GetHeader("X-User-Role")
			email = c.GetHeader("X-User-Email")
		}

		if userID == "" {
			if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
				id, err := auth.IdentityFromToken(strings.TrimPrefix(header, "Bearer "), cfg.JWTSecret)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid or expired token"})
					return
				}
				userID, role, email = id.UserID, id.Role, id.Email
			}
		}

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "unauthorized"})
			return
		}

		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, role)
		c.Set(EmailContextKey, email)
		c.Next()
	}
}

func fromGateway(c *gin.Context, secret string) bool {
	if secret == "" {
		return false
	}
	got := c.GetHeader(GatewaySecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": http.StatusForbidden, "message": "admin role required"})
			return
		}
		c.Next()
	}
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("user ID not found in context")
}

func IsAdmin(c *gin.Context) bool {
	role, _ := c.Get(RoleContextKey)
	return role == AdminRole
}

package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/akibsystems/showgeki2-sub004/internal/config"
	"github.com/akibsystems/showgeki2-sub004/models"
	"github.com/akibsystems/showgeki2-sub004/pkg/httpx"
)

// Context keys set by the middleware
const (
	ContextUID   = "uid"
	ContextEmail = "email"
)

// UID returns the authenticated user's uid from the gin context.
func UID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ContextUID); ok {
		if uid, ok := v.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

// Middleware authenticates requests. Accepted, in order:
//   - X-User-UID header when the local auth-bypass flag is on
//   - session_token cookie backed by the sessions table
//   - Authorization: Bearer <jwt>
func Middleware(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Local development bypass
		if cfg.AuthBypass {
			if raw := c.GetHeader("X-User-UID"); raw != "" {
				uid, err := uuid.Parse(raw)
				if err != nil {
					httpx.Error(c, http.StatusUnauthorized, httpx.CodeAuthorization, "invalid X-User-UID header")
					return
				}
				c.Set(ContextUID, uid)
				c.Next()
				return
			}
		}

		// Session cookie
		if sessionToken, err := c.Cookie("session_token"); err == nil && sessionToken != "" {
			var session models.Session
			result := db.Preload("User").Where("session_token = ?", sessionToken).First(&session)
			if result.Error != nil {
				httpx.Error(c, http.StatusUnauthorized, httpx.CodeAuthorization, "invalid or expired session")
				return
			}

			if session.IsExpired() {
				db.Delete(&session)
				httpx.Error(c, http.StatusUnauthorized, httpx.CodeAuthorization, "session expired")
				return
			}

			session.UpdateLastAccessed(db)
			c.Set(ContextUID, session.UID)
			c.Set(ContextEmail, session.User.Email)
			c.Next()
			return
		}

		// Bearer JWT
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			claims, err := ValidateJWT(cfg.JWTSecret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				httpx.Error(c, http.StatusUnauthorized, httpx.CodeAuthorization, "invalid token")
				return
			}
			uid, err := uuid.Parse(claims.UID)
			if err != nil {
				httpx.Error(c, http.StatusUnauthorized, httpx.CodeAuthorization, "invalid token")
				return
			}
			c.Set(ContextUID, uid)
			c.Set(ContextEmail, claims.Email)
			c.Next()
			return
		}

		httpx.Error(c, http.StatusUnauthorized, httpx.CodeAuthorization, "no authentication token provided")
	}
}

// AdminMiddleware gates admin routes. Runs after Middleware: the user must
// carry the admin flag or appear in the configured email allow-list.
func AdminMiddleware(db *gorm.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UID(c)
		if uid == uuid.Nil {
			httpx.Error(c, http.StatusUnauthorized, httpx.CodeAuthorization, "not authenticated")
			return
		}

		var user models.User
		if err := db.First(&user, "uid = ?", uid).Error; err != nil {
			httpx.Error(c, http.StatusForbidden, httpx.CodeAuthorization, "admin access required")
			return
		}

		if !user.IsAdmin && !cfg.IsAdminEmail(user.Email) {
			httpx.Error(c, http.StatusForbidden, httpx.CodeAuthorization, "admin access required")
			return
		}

		c.Next()
	}
}

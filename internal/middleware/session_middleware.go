package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/errors"
)

// Context keys for the signed-in user
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserRoleKey  = "user_role"
	LocalKey     = "session_local"
)

// SessionReader is the part of the session gate the middleware needs.
type SessionReader interface {
	Current() *model.Session
	IsLikelyValid() bool
}

// SessionMiddleware exposes the locally stored session to handlers. The
// view API has a single user per process, so the session comes from the
// local cache rather than from request headers.
type SessionMiddleware struct {
	sessions SessionReader
}

func NewSessionMiddleware(sessions SessionReader) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// Attach sets the user keys when a session is stored and continues either way.
func (m *SessionMiddleware) Attach() gin.HandlerFunc {
	return func(c *gin.Context) {
		if session := m.sessions.Current(); session.Present() {
			c.Set(UserIDKey, session.User.ID)
			c.Set(UserEmailKey, session.User.Email)
			c.Set(UserRoleKey, session.User.Role)
			c.Set(LocalKey, session.Local)
		}
		c.Next()
	}
}

// RequireSession rejects requests made while signed out.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		if !m.sessions.IsLikelyValid() {
			log.Debug("No usable session", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.Unauthorized(c, "")
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	return c.GetString(UserIDKey), c.GetString(UserIDKey) != ""
}

func GetUserRole(c *gin.Context) (model.UserRole, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	r, ok := role.(model.UserRole)
	return r, ok
}

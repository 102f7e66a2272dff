package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
	ctxEmail  = "email"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Role   string
	Email  string
}

// CurrentIdentity returns the caller stored by JWTAuth.  ok is false on
// unauthenticated routes.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	id, ok := c.Get(ctxUserID).(uuid.UUID)
	if !ok {
		return Identity{}, false
	}
	role, _ := c.Get(ctxRole).(string)
	email, _ := c.Get(ctxEmail).(string)
	return Identity{UserID: id, Role: role, Email: email}, true
}

// Role returns the caller's role, or "" when unauthenticated.
func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// SetIdentity stores an identity the way JWTAuth does.  Handler tests
// use it to skip token signing.
func SetIdentity(c echo.Context, id Identity) {
	c.Set(ctxUserID, id.UserID)
	c.Set(ctxRole, id.Role)
	c.Set(ctxEmail, id.Email)
}

// userID returns the caller id as a string, "anon" when there is none.
func userID(c echo.Context) string {
	if id, ok := CurrentIdentity(c); ok {
		return id.UserID.String()
	}
	return "anon"
}

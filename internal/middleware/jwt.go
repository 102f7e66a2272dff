// Package middleware contains the echo middleware of the ticket API:
// bearer-token identity, role checks, Redis rate limiting and the
// Redis response cache.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Claims are the access-token claims issued by the identity service.
// The subject is the user's UUID.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth returns an Echo middleware that validates an HS256 Bearer
// access token and stores the caller's id, role and email in the
// request context (see Identity).  Tokens whose subject is not a UUID
// are rejected.
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			var claims Claims
			tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			id, err := uuid.Parse(claims.Subject)
			if err != nil || claims.Role == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(ctxUserID, id)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxEmail, claims.Email)
			return next(c)
		}
	}
}

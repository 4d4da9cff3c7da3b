package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "auth_identity"

// Role codes carried in token claims. The auth service issues these; the
// booking service only consumes them.
const (
	RolePatient = "R1"
	RoleDoctor  = "R2"
	RoleAdmin   = "R3"
)

// Identity is the authenticated caller as asserted by the external auth
// service's token.
type Identity struct {
	UserID int64
	Role   string
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

// Claims are the token claims the booking service cares about. Token
// issuance lives in the auth service; the shared HMAC secret only verifies.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"uid"`
	Role   string `json:"role"`
}

type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// JWTMiddleware authenticates requests with a bearer token signed by the
// auth service and stores the resulting Identity on the request context.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if AuthSkipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			opts := []jwt.ParserOption{
				jwt.WithValidMethods([]string{"HS256"}),
			}
			if cfg.Issuer != "" {
				opts = append(opts, jwt.WithIssuer(cfg.Issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}

			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.Secret, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.UserID == 0 || claims.Role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing identity claims")
			}

			ctx := context.WithValue(c.Request().Context(), identityKey, Identity{
				UserID: claims.UserID,
				Role:   claims.Role,
			})
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevAuthMiddleware lets unauthenticated requests through with an admin
// identity. Development only.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), identityKey, Identity{
				UserID: 1,
				Role:   RoleAdmin,
			})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity. Test helper
// and dev middleware plumbing.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

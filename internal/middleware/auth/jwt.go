// Package auth guards the operator routes with HS256 bearer tokens.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/pcoptimize/pcoptimize-backend/pkg/errors"
)

// Operator is the authenticated caller of an internal route.
type Operator struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

type contextKey string

const operatorContextKey contextKey = "authenticated_operator"

// JWTConfig holds the configuration for JWT middleware
type JWTConfig struct {
	Secret string
	Logger *zap.Logger
	// Roles, when set, restricts access to tokens whose role claim is listed.
	Roles []string
}

// JWTMiddleware validates "Authorization: Bearer <token>" signed with HS256.
// An empty secret rejects every request.
func JWTMiddleware(config JWTConfig) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if config.Secret == "" {
				config.Logger.Error("JWT secret not configured, rejecting internal request",
					zap.String("path", path))
				return unauthorized(c, http.StatusInternalServerError, apperrors.ErrInternal, "Internal routes are not configured")
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				config.Logger.Warn("Missing authorization header",
					zap.String("path", path),
					zap.String("method", c.Request().Method))
				return unauthorized(c, http.StatusUnauthorized, apperrors.ErrUnauthenticated, "Authorization header required")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				config.Logger.Warn("Invalid authorization header format",
					zap.String("path", path))
				return unauthorized(c, http.StatusUnauthorized, apperrors.ErrUnauthenticated,
					"Invalid authorization header format. Expected: Bearer <token>")
			}

			claims := jwt.MapClaims{}
			token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(config.Secret), nil
			})
			if err != nil || !token.Valid {
				config.Logger.Warn("JWT validation failed",
					zap.Error(err),
					zap.String("path", path))
				return unauthorized(c, http.StatusUnauthorized, apperrors.ErrUnauthenticated, "Invalid or expired token")
			}

			subject, _ := claims.GetSubject()
			email, _ := claims["email"].(string)
			role, _ := claims["role"].(string)

			if subject == "" {
				config.Logger.Warn("JWT has no subject", zap.String("path", path))
				return unauthorized(c, http.StatusUnauthorized, apperrors.ErrUnauthenticated, "Invalid token claims")
			}
			if len(config.Roles) > 0 && !contains(config.Roles, role) {
				config.Logger.Warn("JWT role not allowed",
					zap.String("sub", subject),
					zap.String("role", role),
					zap.String("path", path))
				return unauthorized(c, http.StatusForbidden, apperrors.ErrUnauthorized, "Insufficient role")
			}

			operator := &Operator{Subject: subject, Email: email, Role: role}
			ctx := context.WithValue(c.Request().Context(), operatorContextKey, operator)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("operator", subject)

			config.Logger.Debug("Operator authenticated",
				zap.String("sub", subject),
				zap.String("path", path))

			return next(c)
		}
	}
}

// GetOperatorFromContext extracts the authenticated operator from the request context
func GetOperatorFromContext(c echo.Context) (*Operator, error) {
	operator, ok := c.Request().Context().Value(operatorContextKey).(*Operator)
	if !ok || operator == nil {
		return nil, fmt.Errorf("no authenticated operator found in context")
	}
	return operator, nil
}

func unauthorized(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{
		"error": message,
		"code":  code,
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

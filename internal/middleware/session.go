package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
	"github.com/noah-isme/loan-portal-api/pkg/logger"
	"github.com/noah-isme/loan-portal-api/pkg/response"
)

// ContextUserKey is the gin context key storing session claims.
const ContextUserKey = "currentUser"

// TokenValidator validates tokens for one session namespace.
type TokenValidator interface {
	Namespace() models.Namespace
	ValidateToken(ctx context.Context, token string) (*models.SessionClaims, error)
}

// Session protects routes by requiring a valid token of the validator's
// namespace, read from the Authorization header or the namespace cookie.
func Session(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c, validator.Namespace())
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		attach(c, claims)
		c.Next()
	}
}

// OptionalSession attaches claims when present but does not block.
func OptionalSession(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c, validator.Namespace())
		if err != nil {
			c.Next()
			return
		}
		if claims, err := validator.ValidateToken(c.Request.Context(), token); err == nil {
			attach(c, claims)
		}
		c.Next()
	}
}

// AnySession accepts a token from any of the given namespaces. Used by
// routes shared between applicants and staff.
func AnySession(validators ...TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, validator := range validators {
			token, err := extractToken(c, validator.Namespace())
			if err != nil {
				continue
			}
			if claims, err := validator.ValidateToken(c.Request.Context(), token); err == nil {
				attach(c, claims)
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
	}
}

func attach(c *gin.Context, claims *models.SessionClaims) {
	c.Set(ContextUserKey, claims)
	subject := claims.Email
	if claims.Username != "" {
		subject = claims.Username
	}
	logger.SetActor(c, string(claims.Namespace), subject)
}

// Claims returns the session claims stored by the session middleware.
func Claims(c *gin.Context) *models.SessionClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

func extractToken(c *gin.Context, ns models.Namespace) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie, err := c.Cookie(ns.CookieName()); err == nil && cookie != "" {
		return cookie, nil
	}
	return "", appErrors.ErrUnauthorized
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/noah-isme/loan-portal-api/internal/middleware"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

const maxFormMemory = 32 << 20

func claimsFromContext(c *gin.Context) *models.SessionClaims {
	return middleware.Claims(c)
}

// actorName labels staff actions with the username, falling back to the email.
func actorName(claims *models.SessionClaims) string {
	if claims == nil {
		return ""
	}
	if claims.Username != "" {
		return claims.Username
	}
	return claims.Email
}

// bindPayload accepts JSON bodies and the portal's HTML form posts. Empty form
// fields are dropped so optional numeric fields stay unset.
func bindPayload(c *gin.Context, dst interface{}) error {
	if c.ContentType() == binding.MIMEJSON {
		return c.ShouldBindJSON(dst)
	}
	if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil && err != http.ErrNotMultipart {
		return err
	}
	for _, values := range []map[string][]string{c.Request.Form, c.Request.PostForm} {
		for key, vs := range values {
			if len(vs) == 0 || strings.TrimSpace(vs[0]) == "" {
				delete(values, key)
			}
		}
	}
	if c.Request.MultipartForm != nil {
		for key, vs := range c.Request.MultipartForm.Value {
			if len(vs) == 0 || strings.TrimSpace(vs[0]) == "" {
				delete(c.Request.MultipartForm.Value, key)
			}
		}
	}
	return c.ShouldBindWith(dst, binding.Form)
}

func invalidPayload(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
	"github.com/noah-isme/loan-portal-api/pkg/response"
)

type applicantSessions interface {
	Namespace() models.Namespace
	Register(ctx context.Context, req dto.RegisterRequest) (*models.Principal, error)
	Login(ctx context.Context, req dto.LoginRequest) (*models.LoginResult, error)
	ValidateToken(ctx context.Context, token string) (*models.SessionClaims, error)
	Logout(ctx context.Context, claims *models.SessionClaims)
	ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error
}

type staffSessions interface {
	Namespace() models.Namespace
	StaffLogin(ctx context.Context, req dto.StaffLoginRequest) (*models.LoginResult, error)
	ValidateToken(ctx context.Context, token string) (*models.SessionClaims, error)
	Logout(ctx context.Context, claims *models.SessionClaims)
}

// CookieConfig controls the session cookies.
type CookieConfig struct {
	Secure bool
	Domain string
}

// AuthHandler wires both session namespaces to HTTP endpoints.
type AuthHandler struct {
	applicant applicantSessions
	staff     staffSessions
	cookies   CookieConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(applicant applicantSessions, staff staffSessions, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{applicant: applicant, staff: staff, cookies: cookies}
}

// Register godoc
// @Summary Register applicant account
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /user-register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid registration payload"))
		return
	}
	principal, err := h.applicant.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, principal)
}

// Login godoc
// @Summary Applicant login
// @Description Starts an applicant session and ends any staff session in the same browser
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /user-login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid login payload"))
		return
	}
	res, err := h.applicant.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.endSession(c, h.staff.Namespace(), h.staff.ValidateToken, h.staff.Logout)
	h.startSession(c, res)
	response.JSON(c, http.StatusOK, res, nil)
}

// StaffLogin godoc
// @Summary Staff login
// @Description Starts a staff session and ends any applicant session in the same browser
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.StaffLoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /staff-login [post]
func (h *AuthHandler) StaffLogin(c *gin.Context) {
	var req dto.StaffLoginRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid login payload"))
		return
	}
	res, err := h.staff.StaffLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.endSession(c, h.applicant.Namespace(), h.applicant.ValidateToken, h.applicant.Logout)
	h.startSession(c, res)
	response.JSON(c, http.StatusOK, res, nil)
}

// Logout godoc
// @Summary Applicant logout
// @Tags Authentication
// @Success 204
// @Router /user-logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.endSession(c, h.applicant.Namespace(), h.applicant.ValidateToken, h.applicant.Logout)
	response.NoContent(c)
}

// StaffLogout godoc
// @Summary Staff logout
// @Tags Authentication
// @Success 204
// @Router /logout [post]
func (h *AuthHandler) StaffLogout(c *gin.Context) {
	h.endSession(c, h.staff.Namespace(), h.staff.ValidateToken, h.staff.Logout)
	response.NoContent(c)
}

// AuthStatus godoc
// @Summary Applicant session status
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /user-auth-status [get]
func (h *AuthHandler) AuthStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Namespace != models.NamespaceApplicant {
		response.JSON(c, http.StatusOK, dto.AuthStatusResponse{LoggedIn: false}, nil)
		return
	}
	response.JSON(c, http.StatusOK, dto.AuthStatusResponse{LoggedIn: true, Email: claims.Email, Name: claims.Name}, nil)
}

// ChangePassword godoc
// @Summary Change applicant password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.ChangePasswordRequest true "Change password"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /user-change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ChangePasswordRequest
	if err := bindPayload(c, &req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	if err := h.applicant.ChangePassword(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *AuthHandler) startSession(c *gin.Context, res *models.LoginResult) {
	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(res.Namespace.CookieName(), res.Token, maxAge, "/", h.cookies.Domain, h.cookies.Secure, true)
}

// endSession denylists the namespace token carried by the cookie, if any,
// and expires the cookie.
func (h *AuthHandler) endSession(c *gin.Context, ns models.Namespace, validate func(context.Context, string) (*models.SessionClaims, error), logout func(context.Context, *models.SessionClaims)) {
	token, err := c.Cookie(ns.CookieName())
	if err == nil && token != "" {
		if claims, err := validate(c.Request.Context(), token); err == nil {
			logout(c.Request.Context(), claims)
		}
	}
	if claims := claimsFromContext(c); claims != nil && claims.Namespace == ns {
		logout(c.Request.Context(), claims)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ns.CookieName(), "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
}

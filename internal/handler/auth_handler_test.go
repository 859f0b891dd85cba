package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/dto"
	"github.com/noah-isme/loan-portal-api/internal/middleware"
	"github.com/noah-isme/loan-portal-api/internal/models"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

type fakeSessions struct {
	ns         models.Namespace
	loginErr   error
	valid      map[string]*models.SessionClaims
	loggedOut  []string
	changedFor string
}

func (f *fakeSessions) Namespace() models.Namespace { return f.ns }

func (f *fakeSessions) result() *models.LoginResult {
	return &models.LoginResult{Token: string(f.ns) + "-token", ExpiresAt: time.Now().Add(time.Hour), Namespace: f.ns}
}

func (f *fakeSessions) Register(_ context.Context, req dto.RegisterRequest) (*models.Principal, error) {
	return &models.Principal{ID: "u1", Email: req.Email, Role: models.RoleApplicant}, nil
}

func (f *fakeSessions) Login(context.Context, dto.LoginRequest) (*models.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.result(), nil
}

func (f *fakeSessions) StaffLogin(context.Context, dto.StaffLoginRequest) (*models.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.result(), nil
}

func (f *fakeSessions) ValidateToken(_ context.Context, token string) (*models.SessionClaims, error) {
	if claims, ok := f.valid[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func (f *fakeSessions) Logout(_ context.Context, claims *models.SessionClaims) {
	f.loggedOut = append(f.loggedOut, claims.UserID)
}

func (f *fakeSessions) ChangePassword(_ context.Context, userID string, _ dto.ChangePasswordRequest) error {
	f.changedFor = userID
	return nil
}

func newAuthFixture() (*AuthHandler, *fakeSessions, *fakeSessions) {
	applicant := &fakeSessions{ns: models.NamespaceApplicant}
	staff := &fakeSessions{ns: models.NamespaceStaff, valid: map[string]*models.SessionClaims{
		"old-staff": {UserID: "s1", Namespace: models.NamespaceStaff, Role: models.RoleStaff},
	}}
	return NewAuthHandler(applicant, staff, CookieConfig{}), applicant, staff
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestLoginSetsCookieAndEndsStaffSession(t *testing.T) {
	h, _, staff := newAuthFixture()

	c, w := newGinContext(http.MethodPost, "/user-login", []byte(`{"email":"asha@example.com","password":"secret123"}`))
	c.Request.AddCookie(&http.Cookie{Name: models.NamespaceStaff.CookieName(), Value: "old-staff"})

	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	session := cookieByName(cookies, "portal_applicant")
	require.NotNil(t, session)
	assert.Equal(t, "applicant-token", session.Value)
	assert.True(t, session.HttpOnly)
	assert.Greater(t, session.MaxAge, 0)

	cleared := cookieByName(cookies, "portal_staff")
	require.NotNil(t, cleared)
	assert.Equal(t, "", cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
	assert.Equal(t, []string{"s1"}, staff.loggedOut)
}

func TestStaffLoginClearsApplicantCookie(t *testing.T) {
	h, _, _ := newAuthFixture()

	c, w := newFormContext(http.MethodPost, "/staff-login", "username=officer&password=pw")
	h.StaffLogin(c)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.NotNil(t, cookieByName(cookies, "portal_staff"))
	cleared := cookieByName(cookies, "portal_applicant")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestLoginFailurePassesThroughError(t *testing.T) {
	h, applicant, _ := newAuthFixture()
	applicant.loginErr = appErrors.ErrInvalidCredentials

	c, w := newGinContext(http.MethodPost, "/user-login", []byte(`{"email":"asha@example.com","password":"bad"}`))
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, cookieByName(w.Result().Cookies(), "portal_applicant"))
}

func TestAuthStatusReportsSession(t *testing.T) {
	h, _, _ := newAuthFixture()

	c, w := newGinContext(http.MethodGet, "/user-auth-status", nil)
	h.AuthStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	var anonymous struct {
		Data dto.AuthStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &anonymous))
	assert.False(t, anonymous.Data.LoggedIn)

	c, w = newGinContext(http.MethodGet, "/user-auth-status", nil)
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "u1", Email: "asha@example.com", Namespace: models.NamespaceApplicant})
	h.AuthStatus(c)
	var active struct {
		Data dto.AuthStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	assert.True(t, active.Data.LoggedIn)
	assert.Equal(t, "asha@example.com", active.Data.Email)
}

func TestLogoutDenylistsAndExpiresCookie(t *testing.T) {
	h, applicant, _ := newAuthFixture()

	c, w := newGinContext(http.MethodPost, "/user-logout", nil)
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "u1", Namespace: models.NamespaceApplicant})
	h.Logout(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"u1"}, applicant.loggedOut)
	cleared := cookieByName(w.Result().Cookies(), "portal_applicant")
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestChangePasswordUsesSessionUser(t *testing.T) {
	h, applicant, _ := newAuthFixture()

	c, w := newGinContext(http.MethodPost, "/user-change-password", []byte(`{"current_password":"old-pass1","new_password":"new-pass1"}`))
	h.ChangePassword(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodPost, "/user-change-password", []byte(`{"current_password":"old-pass1","new_password":"new-pass1"}`))
	c.Set(middleware.ContextUserKey, &models.SessionClaims{UserID: "u1", Namespace: models.NamespaceApplicant})
	h.ChangePassword(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "u1", applicant.changedFor)
}

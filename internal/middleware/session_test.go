package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loan-portal-api/internal/models"
	"github.com/noah-isme/loan-portal-api/internal/service"
	appErrors "github.com/noah-isme/loan-portal-api/pkg/errors"
)

type stubValidator struct {
	ns     models.Namespace
	tokens map[string]*models.SessionClaims
}

func (s stubValidator) Namespace() models.Namespace { return s.ns }

func (s stubValidator) ValidateToken(_ context.Context, token string) (*models.SessionClaims, error) {
	if claims, ok := s.tokens[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var (
	applicantValidator = stubValidator{ns: models.NamespaceApplicant, tokens: map[string]*models.SessionClaims{
		"user-token": {UserID: "u1", Email: "asha@example.com", Role: models.RoleApplicant, Namespace: models.NamespaceApplicant},
	}}
	staffValidator = stubValidator{ns: models.NamespaceStaff, tokens: map[string]*models.SessionClaims{
		"staff-token": {UserID: "s1", Username: "officer", Role: models.RoleStaff, Namespace: models.NamespaceStaff},
	}}
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, claims.UserID)
	})
	r.GET("/", handlers...)
	return r
}

func serve(r *gin.Engine, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSessionAcceptsBearerAndCookie(t *testing.T) {
	r := newRouter(Session(applicantValidator))

	rec := serve(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer user-token") })
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())

	rec = serve(r, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: models.NamespaceApplicant.CookieName(), Value: "user-token"})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestSessionRejectsMissingMalformedAndForeignTokens(t *testing.T) {
	r := newRouter(Session(applicantValidator))

	assert.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, func(req *http.Request) { req.Header.Set("Authorization", "Token abc") }).Code)

	rec := serve(r, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: models.NamespaceStaff.CookieName(), Value: "staff-token"})
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalSessionNeverBlocks(t *testing.T) {
	r := newRouter(OptionalSession(applicantValidator))

	assert.Equal(t, "anonymous", serve(r, nil).Body.String())
	assert.Equal(t, "anonymous", serve(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }).Body.String())
	assert.Equal(t, "u1", serve(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer user-token") }).Body.String())
}

func TestAnySessionTriesEachNamespace(t *testing.T) {
	r := newRouter(AnySession(applicantValidator, staffValidator))

	rec := serve(r, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: models.NamespaceStaff.CookieName(), Value: "staff-token"})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
}

func TestRequireRoles(t *testing.T) {
	staffOnly := newRouter(AnySession(applicantValidator, staffValidator), RequireRoles(models.RoleStaff, models.RoleAdmin))

	rec := serve(staffOnly, func(req *http.Request) { req.Header.Set("Authorization", "Bearer staff-token") })
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(staffOnly, func(req *http.Request) { req.Header.Set("Authorization", "Bearer user-token") })
	assert.Equal(t, http.StatusForbidden, rec.Code)

	bare := newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, serve(bare, nil).Code)
}

func TestRequireRolesRejectsApplicantNamespaceWithStaffRole(t *testing.T) {
	forged := stubValidator{ns: models.NamespaceApplicant, tokens: map[string]*models.SessionClaims{
		"forged": {UserID: "u9", Email: "mallory@example.com", Role: models.RoleAdmin, Namespace: models.NamespaceApplicant},
	}}
	r := newRouter(Session(forged), RequireRoles(models.RoleAdmin))

	rec := serve(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer forged") })
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsLabelsAudience(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/user-applications", Session(applicantValidator), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/user-applications", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/user-applications", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	audiences := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "route" {
					assert.Equal(t, "/user-applications", label.GetValue())
				}
				if label.GetName() == "audience" {
					audiences[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"applicant": 1, "anonymous": 1}, audiences)
}

func TestResponseMetaRecordsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var meta map[string]interface{}
	r.Use(WithResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	serve(r, nil)
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

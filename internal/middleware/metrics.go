package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-portal-api/internal/service"
)

var unmeteredRoutes = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

// Metrics records latency and counts per route template. Probe and scrape
// endpoints are skipped, and requests are labelled with the session
// namespace resolved by the route's gate.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, skip := unmeteredRoutes[route]; skip || strings.HasPrefix(route, "/docs/") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		if route == "" {
			route = "unmatched"
		}
		audience := "anonymous"
		if claims := Claims(c); claims != nil {
			audience = string(claims.Namespace)
		}
		metricsSvc.ObserveHTTPRequest(service.HTTPObservation{
			Method:   c.Request.Method,
			Route:    route,
			Status:   c.Writer.Status(),
			Audience: audience,
			Duration: time.Since(start),
		})
	}
}

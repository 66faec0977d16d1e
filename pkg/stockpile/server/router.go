// Package server wires the store, access rules and HTTP handlers into a gin
// engine and bootstraps the administrator account.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mikepea/stockpile/pkg/stockpile/access"
	"github.com/mikepea/stockpile/pkg/stockpile/admin"
	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/components"
	"github.com/mikepea/stockpile/pkg/stockpile/groups"
	"github.com/mikepea/stockpile/pkg/stockpile/importexport"
	"github.com/mikepea/stockpile/pkg/stockpile/membership"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
	"github.com/mikepea/stockpile/pkg/stockpile/warehouses"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Store  *store.Store
	Tokens *auth.TokenIssuer
	Sync   *membership.Synchronizer
	Logger zerolog.Logger
	// Registry receives the HTTP collectors and backs /metrics. Nil
	// disables both.
	Registry *prometheus.Registry
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))
	if d.Registry != nil {
		r.Use(newHTTPMetrics(d.Registry).middleware())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	resolver := access.NewResolver(d.Store)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": "stockpile",
			})
		})

		// Auth routes (register/login public, session and me protected)
		authHandler := auth.NewHandler(d.Store, d.Tokens, d.Sync)
		authHandler.RegisterRoutes(api)

		protected := api.Group("", authHandler.Middleware())

		components.NewHandler(d.Store, resolver).RegisterRoutes(protected)
		warehouses.NewHandler(d.Store, resolver).RegisterRoutes(protected)
		groups.NewHandler(d.Store, d.Sync).RegisterRoutes(protected)
		importexport.NewHandler(d.Store, resolver).RegisterRoutes(protected)

		// Admin routes (admin role enforced by the handler's route group)
		admin.NewHandler(d.Store, d.Sync).RegisterRoutes(protected)
	}

	return r
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockpile",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stockpile",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *httpMetrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

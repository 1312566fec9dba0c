package v1

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/patientrest/config"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/patientrest/internal/representation"
	"github.com/dmehra2102/prod-golang-projects/patientrest/pkg/metrics"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type RouterDeps struct {
	Config   *config.Config
	Log      *zap.Logger
	Metrics  *metrics.Collector
	Tokens   TokenValidator
	Patients PatientService
	Metadata MetadataService
	Auth     AuthService
	Builder  *representation.Builder

	GlobalLimiter *IPRateLimiter
	AuthLimiter   *IPRateLimiter

	// Checks are run by /readyz, keyed by dependency name.
	Checks map[string]ReadinessCheck
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(
		Recovery(d.Log),
		RequestID(),
		Tracing(),
		AccessLog(d.Log),
		Metrics(d.Metrics),
		CORS(d.Config.CORS),
	)
	r.NoRoute(func(c *gin.Context) { respondError(c, http.StatusNotFound, "resource not found") })
	r.NoMethod(func(c *gin.Context) { respondError(c, http.StatusMethodNotAllowed, "method not allowed") })

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", readyz(d.Checks))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api/v1")
	if d.GlobalLimiter != nil {
		api.Use(RateLimit(d.GlobalLimiter, "global", d.Metrics))
	}

	authH := NewAuthHandler(d.Auth, d.Log)
	authGroup := api.Group("/auth")
	if d.AuthLimiter != nil {
		authGroup.Use(RateLimit(d.AuthLimiter, "auth", d.Metrics))
	}
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/refresh", authH.Refresh)

	protected := api.Group("")
	protected.Use(Authenticate(d.Tokens))
	protected.POST("/auth/change-password", authH.ChangePassword)
	protected.POST("/users", RequireRole(domain.RoleAdmin), authH.CreateUser)

	NewPatientHandler(d.Patients, d.Builder, d.Log).Register(protected)
	NewMetadataHandler(d.Metadata, d.Builder, d.Log).Register(protected)

	return r
}

func readyz(checks map[string]ReadinessCheck) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ready"
		if status != http.StatusOK {
			state = "not ready"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}

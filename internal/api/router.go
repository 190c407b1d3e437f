package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/pipelinecrm/leadhub/docs"
	"github.com/pipelinecrm/leadhub/internal/api/handler"
	"github.com/pipelinecrm/leadhub/internal/api/middleware"
	"github.com/pipelinecrm/leadhub/internal/core/domain"
	"github.com/pipelinecrm/leadhub/internal/core/ports"
)

// Deps is everything the router needs from the composition root.
type Deps struct {
	Log      zerolog.Logger
	Verifier ports.TokenVerifier
	Users    ports.UserService
	Leads    ports.LeadService
	Health   map[string]handler.Check
	Realtime http.Handler

	// CORSOrigins enables CORS for the listed browser origins.
	CORSOrigins []string

	// Registerer and Gatherer back the HTTP metrics; nil uses the
	// Prometheus defaults.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	if d.Registerer == nil {
		d.Registerer = prometheus.DefaultRegisterer
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	if len(d.CORSOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins: d.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
			AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
		}))
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "leadhub_http",
		Registerer: d.Registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/ws"
		},
	}))

	// --- Ops (no auth required) ---
	health := handler.NewHealthHandler(d.Health)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: d.Gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Real-time: authenticates in its own handshake frame ---
	if d.Realtime != nil {
		e.GET("/ws", echo.WrapHandler(d.Realtime))
	}

	// --- API ---
	api := e.Group("/api", middleware.Authenticate(d.Verifier, d.Users, d.Log))

	users := handler.NewUserHandler(d.Users)
	api.GET("/users/profile", users.Profile)
	api.POST("/users", users.Provision, middleware.RequireRoles(domain.RoleAdmin))
	api.PATCH("/users/role/:subjectId", users.UpdateRole, middleware.RequireRoles(domain.RoleAdmin))

	leads := handler.NewLeadHandler(d.Leads)
	api.GET("/leads", leads.List)
	api.POST("/leads", leads.Create, middleware.RequireRoles(domain.RoleSalesRep, domain.RoleManager))

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			if v.Error != nil {
				ev = ev.Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

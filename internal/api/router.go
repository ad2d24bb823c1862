package api

import (
	"net"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/user-directory/docs"
	"github.com/99minutos/user-directory/internal/api/handler"
	"github.com/99minutos/user-directory/internal/api/middleware"
	"github.com/99minutos/user-directory/internal/core/ports"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Identity     ports.IdentityService
	Tokens       ports.TokenIssuer
	Verifier     ports.TokenVerifier
	Importer     ports.BulkImporter
	Summarizer   ports.Summarizer // nil disables POST /summarize
	LoginLimiter ports.RateLimiter
	Health       map[string]handler.Pinger
	Log          zerolog.Logger

	// TrustedProxies may set X-Forwarded-For. Empty means RealIP is the peer.
	TrustedProxies []*net.IPNet
	// Registry receives the HTTP metrics. Defaults to the global registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)
	e.IPExtractor = ipExtractor(d.TrustedProxies)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsConfig(d.Registry)))

	// --- Handlers ---
	identityHandler := handler.NewIdentityHandler(d.Identity)
	authHandler := handler.NewAuthHandler(d.Identity, d.Tokens, d.Log)
	addressHandler := handler.NewAddressHandler(d.Identity)
	bulkHandler := handler.NewBulkHandler(d.Importer)
	summaryHandler := handler.NewSummaryHandler(d.Summarizer, d.Log)
	healthHandler := handler.NewHealthHandler(d.Health)

	// --- Auth ---
	loginMW := []echo.MiddlewareFunc{}
	if d.LoginLimiter != nil {
		loginMW = append(loginMW, middleware.RateLimit(d.LoginLimiter, "login", middleware.ByRealIP, d.Log))
	}
	e.POST("/login", authHandler.Login, loginMW...)
	e.POST("/authenticate", identityHandler.Authenticate)
	e.GET("/users/:email/:password/:org", identityHandler.AuthenticatePath)

	// --- Users ---
	e.POST("/users_create", identityHandler.CreateUser)
	e.GET("/users/:user_id", identityHandler.GetUserByID)
	e.GET("/users/:user_id/addresses", identityHandler.ListAddresses)
	e.GET("/user_by_email/:email/:org", identityHandler.GetUserByEmail)
	e.DELETE("/user_delete/:email/:org", identityHandler.DeleteUser)
	e.POST("/user_update_name/:email/:new_name/:org", identityHandler.RenameUser)
	e.GET("/search_users_by_name/:query/:org", identityHandler.SearchUsers)
	e.POST("/bulk_upload_users", bulkHandler.Upload)

	// --- Addresses (bearer token required) ---
	e.POST("/add_user_address", addressHandler.AddAddress, middleware.Auth(d.Verifier))

	// --- AI ---
	e.POST("/summarize", summaryHandler.Summarize)

	// --- Ops ---
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/metrics", metricsHandler(d.Registry))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// ipExtractor decides what c.RealIP returns, and so every rate limit key.
// Forwarding headers are only honoured when they come from a listed proxy.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func metricsConfig(reg *prometheus.Registry) echoprometheus.MiddlewareConfig {
	cfg := echoprometheus.MiddlewareConfig{Subsystem: "directory"}
	if reg != nil {
		cfg.Registerer = reg
	}
	return cfg
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	if reg == nil {
		return echoprometheus.NewHandler()
	}
	return echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg})
}

// requestLogger feeds echo's request logger into zerolog. Query strings are
// left out so credentials passed in URLs never reach the log.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	log = log.With().Str("component", "http").Logger()
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogRoutePath: true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("route", v.RoutePath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

package http

import (
	"log/slog"
	"time"

	"github.com/eventra/eventra/internal/authz"
	"github.com/eventra/eventra/internal/http/handlers"
	"github.com/eventra/eventra/internal/http/middlewares"
	"github.com/eventra/eventra/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

type RouterDeps struct {
	Log            *slog.Logger
	Auth           *middlewares.AuthMiddleware
	AuthHandler    *handlers.AuthHandler
	EventHandler   *handlers.EventHandler
	RegHandler     *handlers.RegistrationHandler
	HealthHandler  *handlers.HealthHandler
	Prom           *observability.Prom
	PromRegistry   *prometheus.Registry
	AllowedOrigins []string
	ServiceName    string
	Tracing        bool
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middlewares.RequestID())
	router.Use(middlewares.RequestLogger(deps.Log))
	router.Use(middlewares.CORSMiddleware(deps.AllowedOrigins))
	router.Use(middlewares.SecurityHeaders())
	router.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	router.Use(middlewares.RequireJSON())

	if deps.Tracing {
		router.Use(otelgin.Middleware(deps.ServiceName))
	}

	if deps.Prom != nil {
		router.Use(deps.Prom.GinHandleMiddleware())
	}

	// infra endpoints sit outside the /api tree
	router.GET("/healthz", deps.HealthHandler.Healthz)
	router.GET("/readyz", deps.HealthHandler.Readyz)

	if deps.PromRegistry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{})))
	}

	// OTP endpoints trigger outbound mail, so they get a per-IP throttle
	otpLimiter := middlewares.NewRateLimiter(5, time.Minute)
	throttled := otpLimiter.RateLimiterMiddleware(middlewares.KeyByIP)

	api := router.Group("/api/v1")

	users := api.Group("/users")
	{
		users.POST("/send-otp", throttled, deps.AuthHandler.SendOTP)
		users.POST("/verify-otp-register", deps.AuthHandler.VerifyOTPRegister)
		users.POST("/login", throttled, deps.AuthHandler.Login)
		users.POST("/verify-login-otp", deps.AuthHandler.VerifyLoginOTP)
		users.POST("/logout", deps.Auth.RequireAuth(), deps.AuthHandler.Logout)
		users.GET("/profile", deps.Auth.RequireAuth(), deps.AuthHandler.Profile)
	}

	events := api.Group("/events")
	{
		// public reads; identity widens visibility when presented
		events.GET("", deps.Auth.OptionalAuth(), deps.EventHandler.ListEvents)
		events.GET("/:id", deps.Auth.OptionalAuth(), deps.EventHandler.GetEventByID)

		events.POST("", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpCreateEvent), deps.EventHandler.CreateEvent)
		events.PUT("/:id", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpUpdateEvent), deps.EventHandler.UpdateEvent)
		events.DELETE("/:id", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpDeleteEvent), deps.EventHandler.DeleteEvent)

		events.PATCH("/:id/approve", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpApproveEvent), deps.EventHandler.ApproveEvent)
		events.PATCH("/:id/reject", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpRejectEvent), deps.EventHandler.RejectEvent)

		events.POST("/:id/register", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpRegister), deps.RegHandler.Register)
		events.GET("/:id/registrations", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpListRegistrations), deps.RegHandler.ListForEvent)
		events.DELETE("/:id/registrations/:registrationId", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpCancelOwn), deps.RegHandler.Cancel)
		events.POST("/:id/registrations/:registrationId/feedback", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpAttachFeedback), deps.RegHandler.AttachFeedback)
	}

	api.GET("/registrations", deps.Auth.RequireAuth(), deps.Auth.RequireOperation(authz.OpRegister), deps.RegHandler.ListMine)

	return router
}

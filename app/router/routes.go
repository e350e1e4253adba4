// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/apaysummit/summit-registration/app/dto"
	"github.com/apaysummit/summit-registration/app/handlers"
	"github.com/apaysummit/summit-registration/app/middleware"
	"github.com/apaysummit/summit-registration/config"
	"github.com/apaysummit/summit-registration/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const apiPrefix = "/api/v1"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(ctx context.Context) error
	GetApp() *fiber.App
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth        handlers.AuthHandlerInterface
	Participant handlers.ParticipantHandlerInterface
	Invoice     handlers.InvoiceHandlerInterface
	Payment     handlers.PaymentHandlerInterface
	Dashboard   *handlers.DashboardHandler
}

// HealthProbe reports whether a dependency is reachable
type HealthProbe func(ctx context.Context) error

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.Config
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
	accessLog      io.Writer
	healthProbe    HealthProbe
}

// NewFiberRouter creates a new Fiber router. accessLog and healthProbe may be nil.
func NewFiberRouter(cfg *config.Config, h Handlers, authMiddleware *middleware.AuthMiddleware, accessLog io.Writer, healthProbe HealthProbe) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Apay Summit Registration API",
		ServerHeader: "Apay-Summit",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.Server.BodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ProxyHeader:  cfg.Server.ProxyHeader,
		TrustProxy:   len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{
			Proxies: cfg.Server.TrustedProxies,
		},
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	if accessLog == nil {
		accessLog = os.Stdout
	}

	return &FiberRouter{
		app:            app,
		cfg:            cfg,
		handlers:       h,
		authMiddleware: authMiddleware,
		accessLog:      accessLog,
		healthProbe:    healthProbe,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group(apiPrefix)

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	api.Use(limiter.New(limiter.Config{
		Max:          r.cfg.Security.GlobalRateLimit,
		Expiration:   r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimitReached,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == apiPrefix+"/health"
		},
	}))

	api.Get("/pricing/quote", r.handlers.Invoice.QuotePrice)

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")
	authLimiter := limiter.New(limiter.Config{
		Max:          r.cfg.Security.AuthRateLimit,
		Expiration:   r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string { return c.IP() },
		LimitReached: rateLimitReached,
	})
	authenticate := r.authMiddleware.Authenticate()

	auth.Post("/register", authLimiter, r.handlers.Auth.Register)
	auth.Get("/verify-email/:token", authLimiter, r.handlers.Auth.VerifyEmail)
	auth.Post("/resend-verification", authLimiter, r.handlers.Auth.ResendVerification)
	auth.Post("/login", authLimiter, r.handlers.Auth.Login)
	auth.Post("/refresh", authLimiter, r.handlers.Auth.RefreshToken)
	auth.Post("/logout", authenticate, r.handlers.Auth.Logout)

	// Authenticated routes
	api.Get("/profile", authenticate, r.handlers.Auth.Profile)
	api.Get("/dashboard", authenticate, r.handlers.Dashboard.GetDashboard)

	participants := api.Group("/participants", authenticate)
	participants.Post("/", r.handlers.Participant.AddParticipant)
	participants.Post("/bulk", r.handlers.Participant.BulkAddParticipants)
	participants.Get("/", r.handlers.Participant.ListParticipants)
	participants.Get("/export", r.handlers.Participant.ExportParticipants)

	invoices := api.Group("/invoices", authenticate)
	invoices.Get("/", r.handlers.Invoice.ListInvoices)
	invoices.Get("/:id", r.handlers.Invoice.GetInvoice)
	invoices.Get("/:id/pdf", r.handlers.Invoice.DownloadInvoicePDF)
	invoices.Delete("/:id/participants/:participant_id", r.handlers.Participant.DetachParticipant)
	invoices.Post("/:id/proof", r.handlers.Payment.UploadProof)
	invoices.Get("/:id/proof", r.handlers.Payment.DownloadProof)
	invoices.Get("/:id/proof/preview", r.handlers.Payment.PreviewProof)

	// Staff routes
	admin := api.Group("/admin", authenticate, r.authMiddleware.RequireStaff())
	admin.Get("/invoices", r.handlers.Invoice.AdminListInvoices)
	admin.Get("/invoices/export", r.handlers.Invoice.AdminExportInvoices)
	admin.Put("/invoices/:id/payment", r.handlers.Payment.AdminUpdatePaymentStatus)
	admin.Post("/invoices/bulk-status", r.handlers.Payment.AdminBulkUpdateStatus)
	admin.Post("/invoices/:id/recompute", r.handlers.Invoice.AdminRecomputeInvoice)

	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: generateRequestID,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf("panic recovered: request_id=%s method=%s path=%s ip=%s error=%v",
				requestid.FromContext(c), c.Method(), c.Path(), c.IP(), e)
		},
	}))

	r.app.Use(middleware.Metrics())

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                r.cfg.Security.HSTSMaxAge,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginResourcePolicy: "same-site",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     r.cfg.Security.AllowedHeaders,
		ExposeHeaders:    []string{fiber.HeaderXRequestID, fiber.HeaderContentDisposition},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           r.cfg.Security.CORSMaxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
			Next: func(c fiber.Ctx) bool {
				// uploads and rendered documents are already compressed
				return strings.Contains(c.Path(), "/proof") || strings.HasSuffix(c.Path(), "/pdf")
			},
		}))
	}

	if r.cfg.Logging.AccessLog {
		r.app.Use(logger.New(logger.Config{
			Stream:     r.accessLog,
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"INFO","msg":"http request","method":"${method}","path":"${path}","route":"${route}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == apiPrefix+"/health" || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests
func (r *FiberRouter) Shutdown(ctx context.Context) error {
	return r.app.ShutdownWithContext(ctx)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	status := "ok"
	code := fiber.StatusOK
	if r.healthProbe != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := r.healthProbe(ctx); err != nil {
			log.Println("Health probe failed", err)
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: code == fiber.StatusOK,
		Message: "Service health",
		Data: fiber.Map{
			"status":    status,
			"timestamp": utils.UTCNow().Unix(),
			"service":   "summit-registration",
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func rateLimitReached(c fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
		Success: false,
		Message: "Too many requests. Please try again later.",
		Error: dto.ErrorDetail{
			Code: "RATE_LIMIT_EXCEEDED",
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errorCode = "REQUEST_ERROR"
		}
	}

	log.Printf("Error %d: %v", code, err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rensmac/sparq-chat/internal/api/handler"
	customMiddleware "github.com/rensmac/sparq-chat/internal/api/middleware"
	"github.com/rensmac/sparq-chat/internal/chat"
	"github.com/rensmac/sparq-chat/internal/config"
	"github.com/rensmac/sparq-chat/internal/mail"
	"github.com/rensmac/sparq-chat/internal/repository/postgres"
	"github.com/rensmac/sparq-chat/internal/repository/redis"
	"github.com/rensmac/sparq-chat/internal/security"
	"github.com/rensmac/sparq-chat/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	cfg *config.Config,
	db *postgres.DB,
	redisClient *redis.Client,
	engine *chat.Engine,
	registry *chat.Registry,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Security components
	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	convRepo := postgres.NewConversationRepository(db)

	// Services
	mailer := mail.NewMailer(cfg.Mail)
	authService := service.NewAuthService(userRepo, jwtManager, mailer, registry, cfg.Auth.OTPTTL)
	convService := service.NewConversationService(convRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(engine)
	convHandler := handler.NewConversationHandler(convService)

	// Middleware
	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager, cfg.Quota)
	rateLimit := customMiddleware.NewRateLimitMiddleware(redis.NewRateLimiter(redisClient))

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(db))

		// Auth routes (public, abuse-prone: tight request limits)
		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimit.Limit("register", 5, time.Hour)).
				Post("/register", authHandler.Register)
			r.With(rateLimit.Limit("login", 10, time.Minute)).
				Post("/login", authHandler.Login)
			r.With(rateLimit.Limit("verify", 10, time.Minute)).
				Post("/verify_otp", authHandler.VerifyOTP)
			r.With(rateLimit.Limit("resend", 3, time.Hour)).
				Post("/resend_otp", authHandler.ResendOTP)
			r.Post("/refresh", authHandler.Refresh)
		})

		// Chat routes: open to guests and accounts alike, the identity
		// middleware resolves which one is calling.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Identify)

			r.Post("/chat", chatHandler.Send)
			r.Post("/regenerate", chatHandler.Regenerate)
			r.Post("/edit_message", chatHandler.EditMessage)
			r.Post("/sync_history", chatHandler.SyncHistory)
			r.Get("/status", chatHandler.Status)

			r.Post("/conversations", convHandler.Save)
		})

		// Account-only routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/logout", authHandler.Logout)
			r.Delete("/account", authHandler.DeleteAccount)

			r.Get("/conversations", convHandler.List)
			r.Post("/conversations/migrate", convHandler.Migrate)
			r.Delete("/conversations/{conversationID}", convHandler.Delete)
		})
	})

	return r
}

package app

import (
	"context"

	"medauth-service/internal/audit"
	"medauth-service/internal/auth/credentials"
	"medauth-service/internal/auth/handler"
	"medauth-service/internal/auth/provider"
	"medauth-service/internal/auth/provider/google"
	"medauth-service/internal/auth/resolver"
	"medauth-service/internal/biometric"
	"medauth-service/internal/capture"
	"medauth-service/internal/challenge"
	"medauth-service/internal/config"
	"medauth-service/internal/flow"
	"medauth-service/internal/logger"
	"medauth-service/internal/middleware"
	"medauth-service/internal/session"
	"medauth-service/internal/totp"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	var sessionStore session.Store
	var memoryStore *session.MemoryStore
	if cfg.SessionBackend == "redis" {
		sessionStore = session.NewRedisStore(infra.Redis.Client)
	} else {
		memoryStore = session.NewMemoryStore()
		sessionStore = memoryStore
	}

	var auditLog audit.Log = audit.NewPostgresLog(infra.DB)

	var publisher *audit.AMQPPublisher
	if cfg.AMQPURL != "" {
		publisher, err = audit.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			return nil, nil, err
		}
		auditLog = audit.NewFanoutLog(auditLog, publisher)
		logger.Info("audit mirror ready", nil)
	}

	credentialService := credentials.NewService(infra.DB)
	identityResolver := resolver.NewDBResolver(infra.DB)
	matcher := biometric.NewHTTPMatcher(cfg.MatcherURL, cfg.MatcherTimeout)
	totpService := totp.NewService(totp.NewRedisStore(infra.Redis.Client), cfg.TOTPIssuer)
	challenges := challenge.NewGenerator(cfg.ChallengeTTL)
	captures := capture.NewManager(cfg.CaptureSync, cfg.CaptureVoice)

	orch := flow.New(
		sessionStore,
		credentialService,
		matcher,
		totpService,
		challenges,
		captures,
		auditLog,
		flow.Config{
			SessionTTL:     cfg.SessionTTL,
			LockWait:       cfg.LockWait,
			MatcherTimeout: cfg.MatcherTimeout,
			RetryBudget:    cfg.RetryBudget,
		},
	)

	if memoryStore != nil {
		go memoryStore.Sweep(ctx, cfg.SweepInterval, orch.HandleExpiry)
	}

	var registry *provider.Registry
	if cfg.GoogleClientID != "" {
		googleProvider, err := google.New(
			ctx,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
		)
		if err != nil {
			return nil, nil, err
		}
		registry = provider.NewRegistry(googleProvider)
	} else {
		registry = provider.NewRegistry()
	}
	logger.Info("oidc providers configured", map[string]any{
		"providers": registry.Names(),
	})

	authHandler := handler.NewHandler(
		orch,
		registry,
		identityResolver,
		credentialService,
		matcher,
	)

	authMiddleware := middleware.NewAuthMiddleware(sessionStore)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAccepted(authMiddleware))

	api.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	api.GET("/me", func(c *gin.Context) {
		subjectID, _ := middleware.SubjectIDFromContext(c.Request.Context())
		sub, err := credentialService.Subject(c.Request.Context(), subjectID)
		if err != nil || sub == nil {
			c.JSON(404, gin.H{"error": "subject_not_found"})
			return
		}

		body := gin.H{
			"subject_id": sub.ID,
			"role":       string(sub.Role),
			"name":       sub.Name,
			"email":      sub.Email,
			"department": sub.Department,
		}
		if ref, err := credentialService.BiometricRef(c.Request.Context(), subjectID); err == nil {
			body["biometric_enrolled"] = ref != nil
			if ref != nil {
				body["biometric_enrolled_at"] = ref.EnrolledAt
			}
		}
		c.JSON(200, body)
	})

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		if publisher != nil {
			publisher.Close()
		}
		return infra.DB.Close()
	}, nil
}

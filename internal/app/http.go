package app

import (
	"context"
	"errors"
	"time"

	"authgate/internal/auth/credentials"
	"authgate/internal/auth/flowstate"
	"authgate/internal/auth/handler"
	"authgate/internal/auth/provider"
	"authgate/internal/auth/provider/generic"
	"authgate/internal/auth/provider/github"
	"authgate/internal/auth/provider/google"
	"authgate/internal/auth/reconciler"
	"authgate/internal/config"
	"authgate/internal/middleware"
	"authgate/internal/session"
	"authgate/internal/user"

	"github.com/gin-gonic/gin"
)

// flow initiation is throttled per originating address, flow completion
// per route
const (
	loginRatePerSecond  = 0.2
	tokensRatePerSecond = 0.5
	rateWindow          = 30 * time.Second
	ratePartition       = time.Minute
	rateActiveParts     = 2
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	tokenStore := session.NewRedisStore(infra.Redis.Client)
	issuer := session.NewIssuer(tokenStore, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	userStore := user.NewPGStore(infra.DB)
	userReconciler := reconciler.New(userStore)

	credentialService := credentials.NewService(infra.DB)

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	authHandler := handler.NewHandler(
		registry,
		flowstate.NewCodec(cfg.ServerSecret),
		userReconciler,
		issuer,
		credentialService,
		cfg.ExternalBaseURL,
		cfg.FlowStateTTL,
	)

	authMiddleware := middleware.NewAuthMiddleware(tokenStore)

	loginLimiter := middleware.NewRateLimiter(
		loginRatePerSecond, rateWindow, ratePartition, rateActiveParts,
	)
	tokensLimiter := middleware.NewRateLimiter(
		tokensRatePerSecond, rateWindow, ratePartition, rateActiveParts,
	)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(
		router,
		middleware.RateLimitByIP(loginLimiter),
		middleware.RateLimitByRoute(tokensLimiter),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", func(c *gin.Context) {
		userID, _ := middleware.UserIDFromContext(c.Request.Context())
		c.JSON(200, gin.H{
			"user_id": userID,
		})
	})

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		return infra.DB.Close()
	}, nil
}

// setupProviders registers every IDP that has credentials configured.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var clients []provider.Client

	if cfg.GoogleClientID != "" {
		googleProvider, err := google.New(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret)
		if err != nil {
			return nil, err
		}
		clients = append(clients, googleProvider)
	}

	if cfg.GitHubClientID != "" {
		githubProvider, err := github.New(cfg.GitHubClientID, cfg.GitHubClientSecret)
		if err != nil {
			return nil, err
		}
		clients = append(clients, githubProvider)
	}

	if cfg.OIDCProviderName != "" {
		oidcProvider, err := generic.New(
			ctx,
			cfg.OIDCProviderName,
			cfg.OIDCIssuer,
			cfg.OIDCClientID,
			cfg.OIDCClientSecret,
		)
		if err != nil {
			return nil, err
		}
		clients = append(clients, oidcProvider)
	}

	if len(clients) == 0 {
		return nil, errors.New("no identity providers configured")
	}

	return provider.NewRegistry(clients...), nil
}

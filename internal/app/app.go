package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/platformplatform/identity-service/internal/config"
	"github.com/platformplatform/identity-service/internal/handler"
	"github.com/platformplatform/identity-service/internal/oauth"
	"github.com/platformplatform/identity-service/internal/repository"
	"github.com/platformplatform/identity-service/internal/service"
	"github.com/platformplatform/identity-service/internal/utils"
	"github.com/platformplatform/identity-service/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(ctx context.Context, infra Infrastructure, cfg *config.Config) (*App, error) {
	if err := infra.Postgres().Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	uow := repository.NewUnitOfWork(infra.Postgres())

	jwtManager := utils.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry.Duration,
		cfg.JWT.RefreshTokenExpiry.Duration,
	)

	protector, err := utils.NewStateTokenProtector(cfg.OAuth.StateSecret, 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state token protection: %w", err)
	}

	providers, err := buildProviderRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := service.NewTelemetryPublisher(infra.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event telemetry: %w", err)
	}

	tokenIssuer := service.NewTokenIssuer(jwtManager)
	blacklist := service.NewSessionBlacklistService(infra.Redis())
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)
	emailSender := service.NewLoggingEmailSender(infra.Logger())

	emailLoginService := service.NewEmailLoginService(
		uow,
		codeVerifier(cfg),
		cfg.Security.BCryptCost,
		emailSender,
		tokenIssuer,
		publisher,
	)
	externalLoginService := service.NewExternalLoginService(
		uow,
		providers,
		protector,
		tokenIssuer,
		publisher,
	)
	sessionService := service.NewSessionService(
		uow,
		jwtManager,
		tokenIssuer,
		blacklist,
		publisher,
		infra.Logger(),
	)

	cookies := handler.DefaultCookieNames()
	emailLoginHandler := handler.NewEmailLoginHandler(emailLoginService, cookies)
	externalLoginHandler := handler.NewExternalLoginHandler(externalLoginService, cookies)
	sessionHandler := handler.NewSessionHandler(sessionService, cookies)

	router := gin.Default()
	router.Use(otelgin.Middleware("identity-service"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, emailLoginHandler, externalLoginHandler, sessionHandler, sessionService, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// buildProviderRegistry wires Google when credentials are present and, outside
// production, a mock provider used by local frontends and acceptance tests.
func buildProviderRegistry(ctx context.Context, cfg *config.Config) (*oauth.Registry, error) {
	registry := oauth.NewRegistry()

	if cfg.OAuth.GoogleConfigured() {
		for _, flow := range []string{oauth.FlowLogin, oauth.FlowSignup} {
			google, err := oauth.NewGoogleProvider(
				ctx,
				cfg.OAuth.GoogleClientID,
				cfg.OAuth.GoogleClientSecret,
				cfg.OAuth.RedirectURL("google", flow),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize google provider: %w", err)
			}
			registry.Register(flow, google)
		}
	}

	if !cfg.IsProduction() {
		mock := oauth.NewMockProvider()
		registry.Register(oauth.FlowLogin, mock)
		registry.Register(oauth.FlowSignup, mock)
	}

	return registry, nil
}

// codeVerifier returns the production bcrypt check, wrapped with the dev
// backdoor only when one is configured outside production.
func codeVerifier(cfg *config.Config) utils.CodeVerifier {
	var verifier utils.CodeVerifier = utils.BcryptCodeVerifier{}
	if !cfg.IsProduction() && cfg.Security.DevOneTimePassword != "" {
		verifier = utils.DevCodeVerifier{DevCode: cfg.Security.DevOneTimePassword, Inner: verifier}
	}
	return verifier
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	emailLoginHandler *handler.EmailLoginHandler,
	externalLoginHandler *handler.ExternalLoginHandler,
	sessionHandler *handler.SessionHandler,
	sessionService service.SessionService,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	limit := func(keyFunc func(*gin.Context) string) gin.HandlerFunc {
		return handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, keyFunc)
	}

	auth := router.Group("/authentication")
	{
		email := auth.Group("/email")
		{
			email.POST("/login/start", limit(handler.IPBasedKey), emailLoginHandler.StartLogin)
			email.POST("/signup/start", limit(handler.IPBasedKey), emailLoginHandler.StartSignup)
			email.POST("/login/:id/complete", limit(handler.AttemptBasedKey), emailLoginHandler.Complete)
			email.POST("/login/:id/resend-code", limit(handler.AttemptBasedKey), emailLoginHandler.Resend)
		}

		auth.GET("/:provider/login/start", limit(handler.IPBasedKey), externalLoginHandler.StartLogin)
		auth.GET("/:provider/login/callback", externalLoginHandler.LoginCallback)
		auth.GET("/:provider/signup/start", limit(handler.IPBasedKey), externalLoginHandler.StartSignup)
		auth.GET("/:provider/signup/callback", externalLoginHandler.SignupCallback)

		auth.POST("/refresh", sessionHandler.Refresh)
		auth.POST("/logout", handler.AuthMiddleware(sessionService), sessionHandler.Logout)
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/timberline/api/internal/handlers"
	"github.com/timberline/api/internal/payments"
	"github.com/timberline/api/internal/platform/auth"
	"github.com/timberline/api/internal/platform/config"
	pfirestore "github.com/timberline/api/internal/platform/firestore"
	"github.com/timberline/api/internal/platform/jobs"
	"github.com/timberline/api/internal/platform/observability"
	"github.com/timberline/api/internal/platform/secrets"
	platformstorage "github.com/timberline/api/internal/platform/storage"
	firestoreRepo "github.com/timberline/api/internal/repositories/firestore"
	"github.com/timberline/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger.Named("secrets")))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()

	orderTopic := pubsubClient.Topic(cfg.PubSub.OrderTopic)
	leadTopic := pubsubClient.Topic(cfg.PubSub.LeadTopic)
	defer orderTopic.Stop()
	defer leadTopic.Stop()

	orderPublisher, err := jobs.NewPubSubOrderPublisher(orderTopic)
	if err != nil {
		logger.Fatal("failed to initialise order publisher", zap.Error(err))
	}
	leadPublisher, err := jobs.NewPubSubLeadPublisher(leadTopic)
	if err != nil {
		logger.Fatal("failed to initialise lead publisher", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	var signedURLClient *platformstorage.Client
	if credFile := strings.TrimSpace(cfg.Firebase.CredentialsFile); credFile != "" {
		signer, err := platformstorage.NewServiceAccountSignerFromFile(credFile)
		if err != nil {
			logger.Fatal("failed to parse storage signer key", zap.Error(err))
		}
		signedURLClient, err = platformstorage.NewClient(signer)
		if err != nil {
			logger.Fatal("failed to initialise signed url client", zap.Error(err))
		}
	} else {
		logger.Warn("storage signer key not configured; page image uploads disabled")
	}

	basketRepo, err := firestoreRepo.NewBasketRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise basket repository", zap.Error(err))
	}
	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	leadRepo, err := firestoreRepo.NewLeadRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise lead repository", zap.Error(err))
	}
	userRepo, err := firestoreRepo.NewUserRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise user repository", zap.Error(err))
	}
	addressRepo, err := firestoreRepo.NewAddressRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise address repository", zap.Error(err))
	}
	settingsRepo, err := firestoreRepo.NewSettingsRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise settings repository", zap.Error(err))
	}
	contentRepo, err := firestoreRepo.NewContentRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise content repository", zap.Error(err))
	}

	providers := map[string]payments.Provider{
		"invoice": payments.NewInvoiceProvider(payments.WithInvoiceLogger(eventLogger(logger.Named("payments")))),
	}
	if cfg.Features.EnableCardPayments {
		if strings.TrimSpace(cfg.Payments.StripeAPIKey) == "" {
			logger.Fatal("stripe api key is required when card payments are enabled")
		}
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey: cfg.Payments.StripeAPIKey,
			Logger: eventLogger(logger.Named("payments")),
			Clock:  time.Now,
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe payment provider", zap.Error(err))
		}
		providers["card"] = stripeProvider
	}
	paymentManager, err := payments.NewManager(providers)
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	pricingEngine := services.NewPricingEngine()

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Pricer: pricingEngine,
		Logger: eventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	settingsService, err := services.NewSettingsService(services.SettingsServiceDeps{
		Repository: settingsRepo,
		Clock:      time.Now,
		Logger:     eventLogger(logger.Named("settings")),
	})
	if err != nil {
		logger.Fatal("failed to initialise settings service", zap.Error(err))
	}

	basketService, err := services.NewBasketService(services.BasketServiceDeps{
		Repository: basketRepo,
		Pricer:     pricingEngine,
		Settings:   settingsService,
		Clock:      time.Now,
		Logger:     eventLogger(logger.Named("basket")),
	})
	if err != nil {
		logger.Fatal("failed to initialise basket service", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Baskets:   basketRepo,
		Orders:    orderRepo,
		Settings:  settingsService,
		Pricer:    pricingEngine,
		Payments:  paymentManager,
		Publisher: orderPublisher,
		Clock:     time.Now,
		Logger:    eventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Repository: orderRepo,
		Clock:      time.Now,
		Logger:     eventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	leadService, err := services.NewLeadService(services.LeadServiceDeps{
		Repository: leadRepo,
		Publisher:  leadPublisher,
		Clock:      time.Now,
		Logger:     eventLogger(logger.Named("leads")),
	})
	if err != nil {
		logger.Fatal("failed to initialise lead service", zap.Error(err))
	}

	userService, err := services.NewUserService(services.UserServiceDeps{
		Users:      userRepo,
		Addresses:  addressRepo,
		RoleClaims: firebaseVerifier,
		Clock:      time.Now,
		Logger:     eventLogger(logger.Named("users")),
	})
	if err != nil {
		logger.Fatal("failed to initialise user service", zap.Error(err))
	}

	contentService, err := services.NewContentService(services.ContentServiceDeps{
		Repository:  contentRepo,
		Storage:     signedURLClient,
		MediaBucket: cfg.Storage.MediaBucket,
		UploadTTL:   cfg.Storage.SignedURLTTL,
		Clock:       time.Now,
		Logger:      eventLogger(logger.Named("content")),
	})
	if err != nil {
		logger.Fatal("failed to initialise content service", zap.Error(err))
	}

	catalogHandlers := handlers.NewCatalogHandlers(catalogService)
	contactHandlers := handlers.NewContactHandlers(leadService, cfg.Features.EnableLeadCapture)
	contentHandlers := handlers.NewContentHandlers(contentService)
	deliveryHandlers := handlers.NewDeliveryHandlers(settingsService)
	meHandlers := handlers.NewMeHandlers(authenticator, userService)
	basketHandlers := handlers.NewBasketHandlers(authenticator, basketService)
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, checkoutService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService)
	adminUserHandlers := handlers.NewAdminUserHandlers(authenticator, userService)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(authenticator, orderService)
	adminLeadHandlers := handlers.NewAdminLeadHandlers(authenticator, leadService)
	adminSettingsHandlers := handlers.NewAdminSettingsHandlers(authenticator, settingsService)
	adminContentHandlers := handlers.NewAdminContentHandlers(authenticator, contentService)

	var webhookHandlers *handlers.WebhookHandlers
	if secret := strings.TrimSpace(cfg.Payments.StripeWebhookSecret); secret != "" {
		verifier, err := payments.NewWebhookVerifier(secret)
		if err != nil {
			logger.Fatal("failed to initialise webhook verifier", zap.Error(err))
		}
		webhookHandlers = handlers.NewWebhookHandlers(verifier, orderService)
	} else {
		logger.Warn("stripe webhook secret not configured; webhook routes disabled")
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firebase.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(cfg.Firebase.ProjectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(cfg, startedAt)),
		handlers.WithHealthCheck("firestore", func(ctx context.Context) error {
			checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
			defer cancel()
			iter := firestoreClient.Collections(checkCtx)
			if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		}),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(func(r chi.Router) {
			catalogHandlers.Routes(r)
			contactHandlers.Routes(r)
			contentHandlers.Routes(r)
			deliveryHandlers.Routes(r)
		}),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithBasketRoutes(basketHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithAdminRoutes(func(r chi.Router) {
			adminUserHandlers.Routes(r)
			adminOrderHandlers.Routes(r)
			adminLeadHandlers.Routes(r)
			adminSettingsHandlers.Routes(r)
			adminContentHandlers.Routes(r)
		}),
	}
	if webhookHandlers != nil {
		opts = append(opts, handlers.WithWebhookRoutes(webhookHandlers.Routes))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("timberline api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// eventLogger adapts a zap logger to the event callback services expect.
func eventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service event", zFields...)
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

package config

import (
	"context"
	"fmt"
	"io"

	"plan-gate-server/internal/domain"
	"plan-gate-server/internal/infra/stripe"
	"plan-gate-server/internal/infra/supabase"
	"plan-gate-server/internal/infra/vertex"
	"plan-gate-server/internal/repository"
	"plan-gate-server/internal/service"
	"plan-gate-server/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config         domain.Config
	Logger         domain.Logger
	SupabaseClient domain.SupabaseClient

	SubscriptionRepository domain.SubscriptionRepository
	ProfileRepository      domain.ProfileRepository
	PriceStore             domain.PriceStore

	BillingProvider domain.BillingProvider
	// EventVerifier is nil when STRIPE_WEBHOOK_SECRET is unset.
	EventVerifier domain.EventVerifier

	AuthService     domain.AuthService
	PlanResolver    *service.PlanResolver
	PriceCatalog    *service.PriceCatalog
	Provisioner     *service.PriceProvisioner
	CheckoutService *service.CheckoutService
	PortalService   *service.PortalService
	Reconciler      *service.WebhookReconciler
	CooldownGate    *service.CooldownGate
	FeatureGate     *service.FeatureGate
	ContentService  *service.ContentService

	closers []io.Closer
}

// NewContainer creates a new dependency injection container. Missing
// optional credentials degrade the matching component instead of failing.
func NewContainer(ctx context.Context) (*Container, error) {
	cfg := NewConfig()
	appLogger := logger.NewLoggerWithFormat(cfg.GetLogLevel(), cfg.GetLogFormat())

	c := &Container{Config: cfg, Logger: appLogger}

	// Initialize Supabase client
	c.SupabaseClient = supabase.NewSupabaseClient(cfg, appLogger)
	if err := c.SupabaseClient.Initialize(); err != nil {
		appLogger.Warn("Supabase client not initialized; authentication will reject all tokens", "error", err)
	}
	c.AuthService = service.NewAuthService(c.SupabaseClient, appLogger)

	if err := c.initRepositories(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initPriceStore(); err != nil {
		c.Close()
		return nil, err
	}

	if cfg.GetStripeSecretKey() == "" {
		appLogger.Warn("STRIPE_SECRET_KEY not set; billing calls will fail")
	}
	provider := stripe.NewProvider(cfg.GetStripeSecretKey(), nil, appLogger)
	c.BillingProvider = provider
	if secret := cfg.GetStripeWebhookSecret(); secret != "" {
		c.EventVerifier = stripe.NewVerifier(secret)
	} else {
		appLogger.Warn("STRIPE_WEBHOOK_SECRET not set; webhooks are acknowledged without processing")
	}

	c.Provisioner = service.NewPriceProvisioner(provider, cfg.GetStripeProductPrefix(), cfg.GetStripeCurrency(), appLogger)
	c.PriceCatalog = service.NewPriceCatalog(
		cfg.GetStaticPriceIDs(),
		repository.NewLRUPriceCache(0),
		c.PriceStore,
		c.Provisioner,
		appLogger,
	)

	c.PlanResolver = service.NewPlanResolver(c.SubscriptionRepository, appLogger)
	customers := service.NewCustomerResolver(c.ProfileRepository, c.SubscriptionRepository, provider, appLogger)
	c.CheckoutService = service.NewCheckoutService(c.PriceCatalog, customers, provider, c.ProfileRepository, cfg.GetAppURL(), appLogger)
	c.PortalService = service.NewPortalService(customers, provider, cfg.GetAppURL(), appLogger)
	c.Reconciler = service.NewWebhookReconciler(c.SubscriptionRepository, c.ProfileRepository, provider, c.PriceCatalog, appLogger)
	c.CooldownGate = service.NewCooldownGate(c.PlanResolver, c.ProfileRepository, appLogger)
	c.FeatureGate = service.NewFeatureGate(c.PlanResolver, c.CooldownGate, appLogger)

	text, images := c.initGenerators(ctx)
	c.ContentService = service.NewContentService(c.FeatureGate, text, images, appLogger)

	return c, nil
}

func (c *Container) initRepositories(ctx context.Context) error {
	switch driver := c.Config.GetDatastoreDriver(); driver {
	case "postgres":
		db, err := repository.OpenPostgres(ctx, c.Config.GetDatabaseURL())
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		c.closers = append(c.closers, db)
		c.SubscriptionRepository = repository.NewPostgresSubscriptionRepository(db, c.Logger)
		c.ProfileRepository = repository.NewPostgresProfileRepository(db, c.Logger)
		c.Logger.Info("Using postgres datastore")
	case "supabase", "":
		c.SubscriptionRepository = repository.NewSupabaseSubscriptionRepository(c.SupabaseClient, c.Logger)
		c.ProfileRepository = repository.NewSupabaseProfileRepository(c.SupabaseClient, c.Logger)
		c.Logger.Info("Using supabase datastore", "service_role", c.SupabaseClient.DB() != nil)
	default:
		return fmt.Errorf("unknown DATASTORE_DRIVER %q", driver)
	}
	return nil
}

// initPriceStore picks redis when REDIS_URL is set, else the JSON file. A
// read-only deployment without redis gets no durable store.
func (c *Container) initPriceStore() error {
	if url := c.Config.GetRedisURL(); url != "" {
		client, err := repository.NewRedisClient(url)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, client)
		c.PriceStore = repository.NewRedisPriceStore(client, repository.DefaultPriceHashKey)
		return nil
	}
	if c.Config.IsPriceCacheReadOnly() {
		c.Logger.Info("Price cache is read-only; provisioned ids are kept in memory only")
		return nil
	}
	c.PriceStore = repository.NewFilePriceStore(c.Config.GetPriceCacheFile())
	return nil
}

// initGenerators returns nil interfaces when Vertex AI is not configured so
// the content service reports inference as unavailable.
func (c *Container) initGenerators(ctx context.Context) (domain.TextGenerator, domain.ImageGenerator) {
	projectID := c.Config.GetGCPProjectID()
	if projectID == "" {
		c.Logger.Warn("GCP_PROJECT_ID not set; generation endpoints disabled")
		return nil, nil
	}

	var (
		text   domain.TextGenerator
		images domain.ImageGenerator
	)
	tg, err := vertex.NewTextGenerator(ctx, projectID, c.Config.GetGCPLocation(), c.Config.GetVertexTextModel(), c.Logger)
	if err != nil {
		c.Logger.Error("Text generation disabled", err)
	} else {
		c.closers = append(c.closers, tg)
		text = tg
	}

	ig, err := vertex.NewImageGenerator(ctx, projectID, c.Config.GetGCPLocation(), c.Config.GetVertexImageModel(), c.Logger)
	if err != nil {
		c.Logger.Error("Image generation disabled", err)
	} else {
		images = ig
	}
	return text, images
}

// Close releases connections opened by the container.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.Logger.Warn("Failed to close resource", "error", err)
		}
	}
	c.closers = nil
}

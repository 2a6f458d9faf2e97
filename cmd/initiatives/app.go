package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-command"
	initiatives "github.com/goliatone/go-initiatives"
	"github.com/goliatone/go-initiatives/actions"
	"github.com/goliatone/go-initiatives/adapters/gocommand"
	"github.com/goliatone/go-initiatives/adapters/gologger"
	"github.com/goliatone/go-initiatives/core"
	"github.com/goliatone/go-initiatives/i18n"
	"github.com/goliatone/go-initiatives/mailer"
	"github.com/goliatone/go-initiatives/ratelimit"
	sqlstore "github.com/goliatone/go-initiatives/store/sql"
	"github.com/goliatone/go-initiatives/webhooks"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	goredis "github.com/redis/go-redis/v9"
)

const contentCacheTTL = 5 * time.Minute

// app is the fully wired process shared by the serve, worker and run
// commands.
type app struct {
	cfg    appConfig
	config core.Config
	logger *gologger.Logger

	client     *persistence.Client
	redis      *goredis.Client
	service    *core.Service
	worker     *core.DeliveryWorker
	facade     *initiatives.Facade
	actions    *actions.Actions
	translator *i18n.Translator
	ingestor   *webhooks.Ingestor

	queueRegistry *jobqueuecommand.Registry
	subscriptions gocommand.Subscriptions
}

func buildApp(ctx context.Context, cfg appConfig, logger *gologger.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	client, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a.client = client
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return nil, fmt.Errorf("build stores: %w", err)
	}

	service, err := core.NewService(core.Config{},
		core.WithConfigProvider(core.NewCfgxConfigProvider(core.NewEnvConfigLoader())),
		core.WithStoreProvider(factory),
		core.WithLoggerProvider(logger),
		core.WithLogger(logger.GetLogger("initiatives")),
	)
	if err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}
	a.service = service
	a.config = service.Config()

	if cfg.redisEnabled() {
		a.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.DatabasePingTimeout)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	a.translator = i18n.NewTranslator(a.config.DefaultLocale, i18n.WithLogger(logger.GetLogger("i18n")))

	policy := ratelimit.NewAdaptivePolicy(factory.RateLimitStateStore())
	provider := mailer.NewClient(a.config.Provider,
		mailer.WithPolicy(policy),
		mailer.WithLogger(logger.GetLogger("mailer")),
	)
	sendKey := provider.RateLimitKey(mailer.BucketBatchSend)
	limiter, err := a.sendLimiter(sendKey)
	if err != nil {
		return nil, err
	}

	renderer, err := mailer.NewRenderer(a.translator, a.config.DefaultLocale, mailer.WithLinkBaseURL(cfg.LinkBaseURL))
	if err != nil {
		return nil, fmt.Errorf("new renderer: %w", err)
	}
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = contentCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("new content cache: %w", err)
	}
	content, err := sqlstore.NewCachedContentStore(factory.ContentStore(), cacheService)
	if err != nil {
		return nil, err
	}
	dispatcher, err := webhooks.NewSubscriberEventDispatcher(factory.SubscriberStore(),
		webhooks.WithDispatcherLogger(logger.GetLogger("webhooks")),
		webhooks.WithSubscriberDirectory(provider),
	)
	if err != nil {
		return nil, err
	}

	a.worker, err = core.NewDeliveryWorker(a.config.Queue, core.DeliveryWorkerDeps{
		WebhookEvents:     factory.WebhookEventQueue(),
		WebhookHandler:    dispatcher,
		PostNotifications: factory.PostNotificationQueue(),
		Content:           content,
		Renderer:          renderer,
		Provider:          provider,
		Limiter:           ratelimit.NewGuard(limiter, policy, sendKey),
	}, core.WithWorkerLogger(logger.GetLogger("delivery")))
	if err != nil {
		return nil, fmt.Errorf("new delivery worker: %w", err)
	}

	a.facade, err = initiatives.NewFacade(service, initiatives.WithDeliveryRunner(a.worker))
	if err != nil {
		return nil, err
	}
	a.actions, err = actions.New(service, a.translator, actions.WithLogger(logger.GetLogger("actions")))
	if err != nil {
		return nil, err
	}
	a.ingestor = webhooks.NewIngestor(webhooks.NewProviderVerifier(a.config.Secrets.WebhookSecret), service)

	registry := gocommand.NewRegistryAdapter(command.NewRegistry())
	a.queueRegistry = jobqueuecommand.NewRegistry()
	if err := registry.AddQueueResolver(gocommand.QueueResolverKey, a.queueRegistry); err != nil {
		return nil, fmt.Errorf("mirror commands into job queue: %w", err)
	}
	a.subscriptions, err = gocommand.RegisterServices(registry, gocommand.Services{
		Participation: service,
		Notifications: service,
		Delivery:      a.worker,
		Participants:  service,
		QueueStats:    service,
	})
	if err != nil {
		return nil, fmt.Errorf("register command handlers: %w", err)
	}
	if err := registry.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize command registry: %w", err)
	}

	ok = true
	return a, nil
}

// sendLimiter shares the provider window across processes when redis is
// configured.
func (a *app) sendLimiter(key ratelimit.Key) (core.SendLimiter, error) {
	limit, window := a.config.RateLimit.Limit, a.config.RateLimit.Window
	if a.redis == nil {
		return ratelimit.NewMemorySlidingWindow(limit, window), nil
	}
	limiter, err := ratelimit.NewRedisSlidingWindow(a.redis, key, limit, window)
	if err != nil {
		return nil, fmt.Errorf("new redis send window: %w", err)
	}
	return limiter, nil
}

func (a *app) Close() {
	if a == nil {
		return
	}
	a.subscriptions.Unsubscribe()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}

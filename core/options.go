package core

import (
	"context"
	"time"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StoreProvider exposes the persistence gateway as a single dependency.
type StoreProvider interface {
	InitiativeStore() InitiativeStore
	ParticipationStore() ParticipationStore
	PostNotificationQueue() PostNotificationQueue
	WebhookEventQueue() WebhookEventQueue
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	storeProvider   StoreProvider
	initiatives     InitiativeStore
	managers        ManagerResolver
	participations  ParticipationStore
	postQueue       PostNotificationQueue
	webhookQueue    WebhookEventQueue
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithStoreProvider(provider StoreProvider) Option {
	return func(b *serviceBuilder) {
		b.storeProvider = provider
	}
}

func WithInitiativeStore(store InitiativeStore) Option {
	return func(b *serviceBuilder) {
		b.initiatives = store
	}
}

func WithManagerResolver(resolver ManagerResolver) Option {
	return func(b *serviceBuilder) {
		b.managers = resolver
	}
}

func WithParticipationStore(store ParticipationStore) Option {
	return func(b *serviceBuilder) {
		b.participations = store
	}
}

func WithPostNotificationQueue(queue PostNotificationQueue) Option {
	return func(b *serviceBuilder) {
		b.postQueue = queue
	}
}

func WithWebhookEventQueue(queue WebhookEventQueue) Option {
	return func(b *serviceBuilder) {
		b.webhookQueue = queue
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	return serviceBuilder{
		runtimeConfig: runtime,
	}
}

// applyStoreProvider fills stores that were not injected individually.
func (b *serviceBuilder) applyStoreProvider() {
	if b.storeProvider == nil {
		return
	}
	if b.initiatives == nil {
		b.initiatives = b.storeProvider.InitiativeStore()
	}
	if b.participations == nil {
		b.participations = b.storeProvider.ParticipationStore()
	}
	if b.postQueue == nil {
		b.postQueue = b.storeProvider.PostNotificationQueue()
	}
	if b.webhookQueue == nil {
		b.webhookQueue = b.storeProvider.WebhookEventQueue()
	}
	if b.managers == nil {
		if resolver, ok := b.initiatives.(ManagerResolver); ok {
			b.managers = resolver
		}
	}
}

package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service owns the participation lifecycle and the notification producers.
type Service struct {
	observer

	config         Config
	initiatives    InitiativeStore
	managers       ManagerResolver
	participations ParticipationStore
	postQueue      PostNotificationQueue
	webhookQueue   WebhookEventQueue
	now            func() time.Time
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("initiatives", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("initiatives"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}
	builder.applyStoreProvider()

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, MapError(err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, MapError(err)
	}

	if builder.initiatives == nil {
		return nil, fmt.Errorf("core: initiative store is required")
	}
	if builder.participations == nil {
		return nil, fmt.Errorf("core: participation store is required")
	}
	if builder.managers == nil {
		return nil, fmt.Errorf("core: manager resolver is required")
	}

	return &Service{
		observer: observer{
			logger:  logger,
			metrics: builder.metricsRecorder,
		},
		config:         finalConfig,
		initiatives:    builder.initiatives,
		managers:       builder.managers,
		participations: builder.participations,
		postQueue:      builder.postQueue,
		webhookQueue:   builder.webhookQueue,
		now:            builder.now,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// Package initiatives is the entry point of the participation lifecycle and
// notification pipeline. It re-exports the core service and wires its
// command and query handlers.
package initiatives

import "github.com/goliatone/go-initiatives/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type StoreProvider = core.StoreProvider

type DeliveryWorker = core.DeliveryWorker
type DeliveryWorkerDeps = core.DeliveryWorkerDeps

type JoinRequest = core.JoinRequest
type Actor = core.Actor
type WebhookEnvelope = core.WebhookEnvelope
type RunStats = core.RunStats

var (
	WithLogger                = core.WithLogger
	WithLoggerProvider        = core.WithLoggerProvider
	WithMetricsRecorder       = core.WithMetricsRecorder
	WithConfigProvider        = core.WithConfigProvider
	WithOptionsResolver       = core.WithOptionsResolver
	WithStoreProvider         = core.WithStoreProvider
	WithInitiativeStore       = core.WithInitiativeStore
	WithParticipationStore    = core.WithParticipationStore
	WithManagerResolver       = core.WithManagerResolver
	WithPostNotificationQueue = core.WithPostNotificationQueue
	WithWebhookEventQueue     = core.WithWebhookEventQueue
	WithClock                 = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func NewDeliveryWorker(cfg core.QueueConfig, deps DeliveryWorkerDeps, opts ...core.DeliveryWorkerOption) (*DeliveryWorker, error) {
	return core.NewDeliveryWorker(cfg, deps, opts...)
}

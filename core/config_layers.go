package core

import (
	"context"
	"fmt"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

// CfgxConfigProvider decodes the raw map from Loader over the defaults and
// validates the result.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil || p.Loader == nil {
		return defaults, nil
	}
	raw, err := p.Loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return decodeConfig(raw, defaults)
}

// GoOptionsResolver merges defaults, loaded config and runtime overrides as
// go-options layers of increasing priority. Zero values in the loaded and
// runtime layers never override.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(opts.NewScope("defaults", 0), layerOf(defaults, false), opts.WithSnapshotID[map[string]any]("defaults")),
		opts.NewLayer(opts.NewScope("config", 10), layerOf(loaded, true), opts.WithSnapshotID[map[string]any]("config")),
		opts.NewLayer(opts.NewScope("runtime", 20), layerOf(runtime, true), opts.WithSnapshotID[map[string]any]("runtime")),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: build options stack: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: merge options: %w", err)
	}
	return decodeConfig(merged.Value, defaults)
}

func decodeConfig(raw map[string]any, defaults Config) (Config, error) {
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// layerOf renders cfg with the same keys the raw loaders produce.
func layerOf(cfg Config, sparse bool) map[string]any {
	root := map[string]any{}
	put(root, "service_name", cfg.ServiceName, sparse)
	put(root, "default_locale", cfg.DefaultLocale, sparse)

	queue := map[string]any{}
	put(queue, "batch_size", cfg.Queue.BatchSize, sparse)
	put(queue, "provider_batch_limit", cfg.Queue.ProviderBatchLimit, sparse)
	put(queue, "run_budget", cfg.Queue.RunBudget, sparse)

	rate := map[string]any{}
	put(rate, "limit", cfg.RateLimit.Limit, sparse)
	put(rate, "window", cfg.RateLimit.Window, sparse)

	provider := map[string]any{}
	put(provider, "base_url", cfg.Provider.BaseURL, sparse)
	put(provider, "api_key", cfg.Provider.APIKey, sparse)
	put(provider, "from_address", cfg.Provider.FromAddress, sparse)
	put(provider, "from_name", cfg.Provider.FromName, sparse)
	put(provider, "timeout", cfg.Provider.Timeout, sparse)

	secrets := map[string]any{}
	put(secrets, "cron_secret", cfg.Secrets.CronSecret, sparse)
	put(secrets, "webhook_secret", cfg.Secrets.WebhookSecret, sparse)

	for name, section := range map[string]map[string]any{
		"queue":      queue,
		"rate_limit": rate,
		"provider":   provider,
		"secrets":    secrets,
	} {
		if len(section) > 0 {
			root[name] = section
		}
	}
	return root
}

func put[V comparable](section map[string]any, key string, value V, sparse bool) {
	var zero V
	if sparse && value == zero {
		return
	}
	section[key] = value
}

package app

import (
	"context"
	"fmt"

	"github.com/blockwire/news-curator/internal/config"
	"github.com/blockwire/news-curator/internal/datasources"
	"github.com/blockwire/news-curator/internal/datasources/memory"
	"github.com/blockwire/news-curator/internal/datasources/rssfeed"
	"github.com/blockwire/news-curator/internal/datasources/sqldb"
	"github.com/blockwire/news-curator/internal/datasources/webhook"
	"github.com/blockwire/news-curator/internal/ingest"
	"github.com/blockwire/news-curator/internal/transport/web/router"
	"github.com/blockwire/news-curator/internal/transport/web/server"
)

type Component interface {
	Run(ctx context.Context) error
}

func Setup(ctx context.Context) ([]Component, error) {
	curation, err := config.Load(MustGetEnvAsString(ctx, "CURATION_CONFIG_PATH"))
	if err != nil {
		return nil, fmt.Errorf("loading curation config: %w", err)
	}

	repository, err := setupRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("setting up repository: %w", err)
	}

	invalidator, err := setupCacheInvalidator(ctx)
	if err != nil {
		return nil, fmt.Errorf("setting up cache invalidator: %w", err)
	}

	store, err := ingest.NewStore(repository, invalidator, curation.Quotas)
	if err != nil {
		return nil, fmt.Errorf("setting up article store: %w", err)
	}

	scheduler := ingest.NewScheduler(
		rssfeed.New(curation.Sources),
		store,
		ingest.Config{
			NormalInterval:     MustGetEnvAsDuration(ctx, "SCHEDULER_NORMAL_INTERVAL"),
			IntensiveInterval:  MustGetEnvAsDuration(ctx, "SCHEDULER_INTENSIVE_INTERVAL"),
			IntensiveStartHour: MustGetEnvAsInt(ctx, "SCHEDULER_INTENSIVE_START_HOUR"),
			IntensiveEndHour:   MustGetEnvAsInt(ctx, "SCHEDULER_INTENSIVE_END_HOUR"),
			BackoffMultiplier:  MustGetEnvAsFloat(ctx, "SCHEDULER_BACKOFF_MULTIPLIER"),
			MaxBackoff:         MustGetEnvAsDuration(ctx, "SCHEDULER_MAX_BACKOFF"),
			RetryAttempts:      MustGetEnvAsInt(ctx, "SCHEDULER_RETRY_ATTEMPTS"),
		},
	)

	httpRouter, err := router.MakeRouter(
		repository,
		scheduler,
		MustGetEnvAsString(ctx, "RSS_FEED_BASE_URL"),
		MustGetEnvAsString(ctx, "RSS_FEED_AUTHOR_NAME"),
		MustGetEnvAsString(ctx, "RSS_FEED_AUTHOR_EMAIL"),
		MustGetEnvAsDuration(ctx, "LATEST_CACHE_MAX_AGE"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create HTTP router: %w", err)
	}

	return []Component{
		&schedulerComponent{scheduler: scheduler},
		&server.Server{
			TLSDisabled:       MustGetEnvAsBoolean(ctx, "HTTP_TLS_DISABLED"),
			TLSDisabledPort:   MustGetEnvAsInt(ctx, "PORT"),
			AutocertHostnames: MustGetEnvAsStrings(ctx, "HTTP_AUTOCERT_HOSTNAMES"),
			Router:            httpRouter,
		},
	}, nil
}

func setupRepository(ctx context.Context) (datasources.Repository, error) {
	switch driver := MustGetEnvAsString(ctx, "REPOSITORY_DRIVER"); driver {
	case "memory":
		return memory.New(), nil
	case "mysql", "postgres":
		db, err := sqldb.Connect(ctx, driver, MustGetEnvAsString(ctx, "DATABASE_URI"))
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", driver, err)
		}
		return sqldb.New(db, driver)
	default:
		return nil, fmt.Errorf("unknown repository driver [%s]", driver)
	}
}

func setupCacheInvalidator(ctx context.Context) (datasources.CacheInvalidator, error) {
	switch driver := MustGetEnvAsString(ctx, "CACHE_INVALIDATOR_DRIVER"); driver {
	case "null":
		return datasources.NullCacheInvalidator{}, nil
	case "webhook":
		return webhook.New(MustGetEnvAsString(ctx, "CACHE_PURGE_URL")), nil
	default:
		return nil, fmt.Errorf("unknown cache invalidator driver [%s]", driver)
	}
}

// schedulerComponent adapts the scheduler to the Component lifecycle: start
// on Run, stop when the process context is cancelled.
type schedulerComponent struct {
	scheduler *ingest.Scheduler
}

func (c *schedulerComponent) Run(ctx context.Context) error {
	c.scheduler.Start(ctx)
	<-ctx.Done()
	c.scheduler.Stop(context.WithoutCancel(ctx))
	return nil
}

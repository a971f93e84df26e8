// Command mailcast runs the campaign engine and its HTTP control API.
//
// Every backing service is optional: without DATABASE_URL campaigns live in memory, without
// REDIS_URL rate buckets are per process, without S3_BUCKET list uploads are disabled and
// without AMQP_URL delivery events are only logged.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/mailcast"
	"github.com/dmitrymomot/mailcast/pkg/analytics"
	"github.com/dmitrymomot/mailcast/pkg/cache"
	"github.com/dmitrymomot/mailcast/pkg/db"
	"github.com/dmitrymomot/mailcast/pkg/health"
	"github.com/dmitrymomot/mailcast/pkg/job"
	"github.com/dmitrymomot/mailcast/pkg/logger"
	"github.com/dmitrymomot/mailcast/pkg/mailer"
	"github.com/dmitrymomot/mailcast/pkg/mailer/gmail"
	"github.com/dmitrymomot/mailcast/pkg/mailer/resend"
	"github.com/dmitrymomot/mailcast/pkg/progress"
	"github.com/dmitrymomot/mailcast/pkg/ratelimit"
	"github.com/dmitrymomot/mailcast/pkg/redis"
	"github.com/dmitrymomot/mailcast/pkg/source"
	"github.com/dmitrymomot/mailcast/pkg/storage"
	"github.com/dmitrymomot/mailcast/pkg/store"
	"github.com/dmitrymomot/mailcast/pkg/verify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Log, os.Stdout, logger.Campaign(), logger.Recipient(), logger.RequestID())
	ctx := context.Background()

	var (
		hooks  []mailcast.RunOption
		checks = health.Checks{}
		opts   []mailcast.Option
	)
	shutdown := func(fn func(context.Context) error) {
		hooks = append(hooks, mailcast.ShutdownHook(fn))
	}

	// Persistence
	var pool *pgxpool.Pool
	if cfg.DB.Enabled() {
		pool, err = db.Connect(ctx, cfg.DB)
		if err != nil {
			return err
		}
		if err := db.Migrate(ctx, pool, store.Migrations(), cfg.DB.MigrationsTable, log); err != nil {
			pool.Close()
			return err
		}
		pg := store.NewPostgres(pool)
		opts = append(opts, mailcast.WithStore(pg), mailcast.WithTemplates(pg))
		checks["postgres"] = db.Healthcheck(pool)
	} else {
		log.Warn("DATABASE_URL is not set, campaigns are kept in memory")
		mem := store.NewMemory()
		opts = append(opts, mailcast.WithStore(mem), mailcast.WithTemplates(mem))
	}

	// Providers
	providers, err := buildProviders(cfg, log)
	if err != nil {
		return err
	}
	opts = append(opts, mailcast.WithProviders(providers))
	for name, check := range mailcast.ProviderChecks(providers) {
		checks[name] = check
	}

	// Rate limits and the verification cache
	var (
		rdb         goredis.UniversalClient
		verifyCache cache.Cache[verify.Result]
	)
	if cfg.Redis.Enabled() {
		rdb, err = redis.Open(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		limiter, err := ratelimit.NewRedis(rdb, mailer.Budgets(providers.Providers()...))
		if err != nil {
			return err
		}
		opts = append(opts, mailcast.WithLimiter(limiter))
		verifyCache = cache.NewRedis[verify.Result](rdb, "mailcast:verify:", cfg.VerifyCacheTTL)
		checks["redis"] = redis.Healthcheck(rdb)
	} else {
		mem := cache.NewMemory[verify.Result](cache.WithDefaultTTL(cfg.VerifyCacheTTL))
		verifyCache = mem
		shutdown(func(context.Context) error { return mem.Close() })
	}

	if cfg.VerifyAddresses {
		opts = append(opts, mailcast.WithVerifier(verify.New(
			verify.WithCache(verifyCache),
			verify.WithLogger(log),
		)))
	}

	// Recipient sources
	sources := source.NewMux()
	sources.Handle(source.SchemeMemory, source.NewMemory())
	var uploads storage.Storage
	if cfg.Storage.Enabled() {
		s3, err := storage.New(cfg.Storage)
		if err != nil {
			return err
		}
		uploads = s3
		sources.Handle(source.SchemeS3, source.NewObjectOpener(s3))
		checks["storage"] = s3.Healthcheck
	}
	opts = append(opts, mailcast.WithSources(sources))

	// Delivery events
	var consumer progress.Consumer = progress.ConsumerFunc(analytics.Log(log))
	if cfg.Analytics.Enabled() {
		broker, err := analytics.NewAMQP(cfg.Analytics, analytics.WithLogger(log))
		if err != nil {
			return err
		}
		consumer = broker
		checks["amqp"] = broker.Healthcheck
	}
	forwarder := progress.NewForwarder(consumer, progress.WithLogger(log))
	opts = append(opts,
		mailcast.WithTracker(progress.NewTracker(progress.WithForwarder(forwarder))),
		mailcast.WithLogger(log),
	)

	eng, err := mailcast.New(cfg.Engine, opts...)
	if err != nil {
		return err
	}

	// Scheduled starts and periodic recovery need the job queue, which needs Postgres.
	if pool != nil {
		jobs, err := job.NewManager(pool, append(eng.Tasks(),
			job.WithLogger(log),
			job.WithMaxWorkers(cfg.JobWorkers),
		)...)
		if err != nil {
			return err
		}
		if err := jobs.Start(ctx); err != nil {
			return err
		}
		eng.SetScheduler(jobs)
		checks["jobs"] = jobs.Healthcheck
		shutdown(jobs.Stop)
	}

	if n, err := eng.Recover(ctx); err != nil {
		log.Error("campaign recovery failed", slog.Any("error", err))
	} else if n > 0 {
		log.Info("campaigns resumed", slog.Int("count", n))
	}

	// Hooks run after the engine has stopped, so late events still reach the broker.
	shutdown(forwarder.Close)
	if closer, ok := consumer.(interface{ Close() error }); ok {
		shutdown(func(context.Context) error { return closer.Close() })
	}
	if rdb != nil {
		shutdown(redis.Shutdown(rdb))
	}
	if pool != nil {
		shutdown(db.Shutdown(pool))
	}

	handlerOpts := []mailcast.HandlerOption{
		mailcast.WithReadinessChecks(checks),
		mailcast.WithHandlerLogger(log),
		mailcast.WithRequestTimeout(cfg.RequestTimeout),
		mailcast.WithMaxUploadSize(cfg.MaxUploadSize),
	}
	if uploads != nil {
		handlerOpts = append(handlerOpts, mailcast.WithUploads(uploads))
	}

	return mailcast.Run(eng, mailcast.NewHandler(eng, handlerOpts...), append(hooks,
		mailcast.Address(cfg.Addr),
		mailcast.Logger(log),
		mailcast.ShutdownTimeout(cfg.ShutdownTimeout),
	)...)
}

// buildProviders registers every configured provider. Without any, a log-only provider is used.
func buildProviders(cfg config, log *slog.Logger) (*mailer.Set, error) {
	var list []mailer.Provider
	if cfg.Resend.Enabled() {
		p, err := resend.New(cfg.Resend)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if cfg.Gmail.Enabled() {
		p, err := gmail.New(cfg.Gmail)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if len(list) == 0 {
		log.Warn("no email provider configured, messages are only logged")
		list = append(list, mailer.NewLogProvider("log", ratelimit.Budget{
			Capacity: cfg.LogProviderCapacity,
			Refill:   cfg.LogProviderCapacity,
			Per:      cfg.LogProviderPeriod,
		}, log))
	}

	primary := cfg.PrimaryProvider
	if primary == "" {
		primary = list[0].Name()
	}
	set, err := mailer.NewSet(cfg.ProviderMode, primary, list...)
	if err != nil {
		return nil, errors.Join(errors.New("configure providers"), err)
	}
	return set, nil
}

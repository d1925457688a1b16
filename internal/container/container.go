package container

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/rates-proxy-go/internal/analytics"
	analyticsstore "github.com/serroba/rates-proxy-go/internal/analytics/store"
	"github.com/serroba/rates-proxy-go/internal/cache"
	"github.com/serroba/rates-proxy-go/internal/gate"
	"github.com/serroba/rates-proxy-go/internal/handlers"
	"github.com/serroba/rates-proxy-go/internal/health"
	"github.com/serroba/rates-proxy-go/internal/messaging"
	"github.com/serroba/rates-proxy-go/internal/middleware"
	"github.com/serroba/rates-proxy-go/internal/quota"
	"github.com/serroba/rates-proxy-go/internal/store"
	"github.com/serroba/rates-proxy-go/internal/upstream"
	"go.uber.org/zap"
)

// probeTimeout bounds the one-time shared-store probe at startup.
const probeTimeout = 3 * time.Second

// Options holds the process configuration, parsed by humacli.
type Options struct {
	Port        int    `default:"8888"  help:"Port to listen on"                                          short:"p"`
	RedisAddr   string `default:""      help:"Redis address; empty runs single-instance in-process state" short:"r"`
	PostgresDSN string `default:""      help:"PostgreSQL DSN for analytics persistence (consumer only)"`
	UpstreamURL string `default:"https://api.ratesview.dev/v1" help:"Base URL of the rates upstream"`
	UpstreamKey string `default:""      help:"API key for the rates upstream"`
	MinuteMax   int64  `default:"20"    help:"Upstream requests allowed per rolling minute"`
	MonthMax    int64  `default:"500"   help:"Upstream requests allowed per calendar month"`
	LogFormat   string `default:"console" help:"Log output format (console or json)"`
}

// LoggerPackage provides the zap logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		options := do.MustInvoke[*Options](i)

		if options.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage provides the shared redis client, or nil when no address is
// configured (local single-instance mode).
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*redis.Client, error) {
		options := do.MustInvoke[*Options](i)

		if options.RedisAddr == "" {
			return nil, nil
		}

		return redis.NewClient(&redis.Options{
			Addr: options.RedisAddr,
		}), nil
	})
}

// PostgresPackage provides the analytics pool, or nil when no DSN is
// configured.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*pgxpool.Pool, error) {
		options := do.MustInvoke[*Options](i)

		if options.PostgresDSN == "" {
			return nil, nil
		}

		return pgxpool.New(context.Background(), options.PostgresDSN)
	})
}

// QuotaPackage provides the shared quota tracker. The backend is chosen
// exactly once: if redis is configured and answers a ping within the probe
// timeout, the shared store is used; otherwise the process degrades to the
// in-process store with a single warning. A probe failure is non-fatal;
// only mid-operation faults after the shared store was selected surface as
// request errors.
func QuotaPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*quota.Tracker, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		client := do.MustInvoke[*redis.Client](i)

		limits := quota.Limits{
			MinuteMax: options.MinuteMax,
			MonthMax:  options.MonthMax,
		}

		if client == nil {
			logger.Info("quota state is in-process; counters reset on restart")

			return quota.NewTracker(store.NewQuotaMemoryStore(), limits), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("shared quota store unreachable, falling back to in-process state",
				zap.String("addr", options.RedisAddr),
				zap.Error(err),
			)

			return quota.NewTracker(store.NewQuotaMemoryStore(), limits), nil
		}

		return quota.NewTracker(store.NewQuotaRedisStore(client), limits), nil
	})
}

// UpstreamPackage provides the upstream client.
func UpstreamPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*upstream.Client, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return upstream.NewClient(options.UpstreamURL, options.UpstreamKey, upstream.DefaultTimeout, logger), nil
	})
}

// PublisherGroupPackage provides the analytics publisher group, or nil in
// local mode where no message transport is available.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		client := do.MustInvoke[*redis.Client](i)

		if client == nil {
			return nil, nil
		}

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: client,
		}, watermill.NopLogger{})
		if err != nil {
			return nil, err
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

// ConsumerGroupPackage provides the analytics consumer group for the
// consumer binary.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		options := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		client := do.MustInvoke[*redis.Client](i)
		pool := do.MustInvoke[*pgxpool.Pool](i)

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client,
			ConsumerGroup: "analytics",
		}, watermill.NopLogger{})
		if err != nil {
			return nil, err
		}

		var analyticsStore analytics.Store
		if pool != nil {
			analyticsStore = analyticsstore.NewPostgres(pool)
		} else {
			logger.Info("no postgres configured, analytics events are logged only",
				zap.String("redis", options.RedisAddr),
			)

			analyticsStore = analyticsstore.NewNoop(logger)
		}

		return analytics.NewConsumerGroup(subscriber, analyticsStore, logger), nil
	})
}

// HTTPPackage provides the router and API with all routes registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		tracker := do.MustInvoke[*quota.Tracker](i)
		client := do.MustInvoke[*upstream.Client](i)
		redisClient := do.MustInvoke[*redis.Client](i)
		publisherGroup := do.MustInvoke[*messaging.PublisherGroup](i)

		api := humachi.New(router, huma.DefaultConfig("Rates Proxy", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(api, logger))

		publishServed := messaging.NoopPublish[analytics.RequestServedEvent]()
		publishDenied := messaging.NoopPublish[analytics.QuotaDeniedEvent]()

		if publisherGroup != nil {
			publishServed = messaging.NewPublishFunc[analytics.RequestServedEvent](
				publisherGroup.Publisher(), analytics.TopicRequestServed)
			publishDenied = messaging.NewPublishFunc[analytics.QuotaDeniedEvent](
				publisherGroup.Publisher(), analytics.TopicQuotaDenied)
		}

		proxyHandler := handlers.NewProxyHandler(
			gate.New(tracker, logger),
			cache.NewSlot(cache.DefaultTTL),
			cache.NewMap(cache.DefaultTTL),
			client,
			publishServed,
			publishDenied,
			logger,
		)

		handlers.RegisterRoutes(api, proxyHandler, handlers.NewQuotaHandler(tracker))

		checkers := map[string]health.Checker{}
		if redisClient != nil {
			checkers["redis"] = health.NewRedisChecker(redisClient)
		}

		health.RegisterRoutes(api, health.NewHandler(checkers))

		return api, nil
	})
}

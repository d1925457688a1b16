package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/rates-proxy-go/internal/container"
	"go.uber.org/zap"
)

const shutdownGrace = 30 * time.Second

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.QuotaPackage(injector)
	container.UpstreamPackage(injector)
	container.PublisherGroupPackage(injector)
	container.HTTPPackage(injector)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			router := do.MustInvoke[*chi.Mux](injector)

			// Invoking the API registers all routes on the router.
			_ = do.MustInvoke[huma.API](injector)

			addr := fmt.Sprintf(":%d", options.Port)
			server = &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("rates proxy listening",
				zap.String("addr", addr),
				zap.Int64("minute_max", options.MinuteMax),
				zap.Int64("month_max", options.MonthMax),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("listener failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("draining in-flight requests")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("drain incomplete", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("stopped")
		})
	})

	cli.Run()
}

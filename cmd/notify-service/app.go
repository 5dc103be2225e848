package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"beacon/internal/api"
	"beacon/internal/archive"
	"beacon/internal/attachment"
	"beacon/internal/audio"
	"beacon/internal/cipher"
	"beacon/internal/cloud"
	"beacon/internal/config"
	"beacon/internal/constants"
	"beacon/internal/logger"
	"beacon/internal/messages"
	"beacon/internal/notifier"
	"beacon/internal/pipeline"
	"beacon/internal/preferences"
	"beacon/internal/stages"
	"beacon/pkg/bootstrap"
	"beacon/pkg/circuitbreaker"
	"beacon/pkg/health"
	"beacon/pkg/logging"
	"beacon/pkg/metrics"
	"beacon/pkg/middleware"
	"beacon/pkg/models"
	"beacon/pkg/ratelimit"
	"beacon/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	mongoClient    *mongo.Client
	mongoDB        *mongo.Database
	store          *messages.SQLStore
	prefs          preferences.Store
	icons          *cloud.CircuitBreakerIconStore
	writer         *archive.Writer
	sweeper        *archive.Sweeper
	notifier       notifier.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceNotify)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	initCtx := logging.WithServiceName(ctx, constants.ServiceNotify)

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	a.redis = rdb

	store, err := a.dbConnector.InitMessages(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize message store: %w", err)
	}
	a.store = store

	mongoClient, mongoDB, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		a.Logger.WarnwCtx(initCtx, "MongoDB connection failed, cloud icons will be disabled", "error", err)
	} else {
		a.mongoClient = mongoClient
		a.mongoDB = mongoDB
	}

	prefs, err := preferences.New(a.Config.Preferences, a.redis)
	if err != nil {
		return fmt.Errorf("failed to initialize preferences: %w", err)
	}
	a.prefs = prefs

	if err := a.initPipeline(initCtx); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if err := a.InitBroker(constants.ServiceNotify); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceNotify)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterPipelineMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterAPIMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initHTTPServer(initCtx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initPipeline(ctx context.Context) error {
	cfg := a.Config
	cb := cfg.CircuitBreaker

	var (
		fetchOpts       []attachment.Option
		callbackBreaker *circuitbreaker.Wrapper
	)
	if cb.Enabled {
		fetchOpts = append(fetchOpts, attachment.WithCircuitBreaker(
			circuitbreaker.NewWrapper(circuitbreaker.FromSettings("attachment-fetch", cb))))
		callbackBreaker = circuitbreaker.NewWrapper(circuitbreaker.FromSettings("host-callback", cb))
	}

	gateway := cipher.FromSettings(cfg.Cipher)
	if gateway.Len() == 0 {
		a.Logger.WarnwCtx(ctx, "No cipher configured, encrypted pushes will be replaced")
	}

	a.writer = archive.NewWriter(cfg.Archive.WriteTimeout, a.Logger)
	a.sweeper = archive.NewSweeper(a.store, a.prefs, cfg.Archive.SweepInterval, a.Logger)

	deps := stages.Deps{
		Cipher:      gateway,
		Messages:    a.store,
		Preferences: a.prefs,
		Writer:      a.writer,
		Callback:    archive.NewHostCallback(cfg.Archive.CallbackTimeout, callbackBreaker),
		Extender:    audio.NewExtender(audio.OptionsFromConfig(cfg.Audio), audio.NewTranscoder(cfg.Audio), a.Logger),
		Fetcher:     attachment.NewFetcher(cfg.Attachments, a.Logger, fetchOpts...),
		Archive:     cfg.Archive,
		Audio:       cfg.Audio,
		Logger:      a.Logger,
	}
	if cfg.Attachments.AlbumDir != "" {
		deps.Album = attachment.NewAlbum(cfg.Attachments.AlbumDir)
	}
	if a.mongoDB != nil {
		a.icons = cloud.NewCircuitBreakerIconStore(cloud.NewMongoIconStore(a.mongoDB, cfg.Cloud.Collection), cb)
		deps.Icons = a.icons
	}

	orchestrator := pipeline.New(stages.Default(deps), a.Logger)
	a.notifier = notifier.NewService(orchestrator, a.writer, cfg.Pipeline, a.Logger)

	a.Logger.InfowCtx(ctx, "Pipeline ready",
		"stages", orchestrator.StageNames(),
		"deadline", cfg.Pipeline.Deadline,
		"cloud_icons", a.icons != nil,
	)
	return nil
}

func (a *App) initHTTPServer(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceNotify))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))

	if a.Config.API.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromSettings(a.Config.API.RateLimit)
		router.Use(ratelimit.RateLimitMiddleware(rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	deps := api.Deps{
		Notifier:    a.notifier,
		Messages:    a.store,
		Preferences: a.prefs,
	}
	if a.icons != nil {
		deps.Icons = a.icons
	}
	if a.Producer != nil {
		outputTopic := a.outputTopic()
		deps.Publish = func(ctx context.Context, n models.Notification) {
			if err := a.Producer.Publish(ctx, outputTopic, n); err != nil {
				a.Logger.WarnwCtx(ctx, "Failed to publish notification", "error", err, "topic", outputTopic)
			}
		}
	}
	api.NewHandler(deps, a.Logger).RegisterRoutes(router)
	api.RegisterDocs(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewSQLChecker(a.store.DB(), a.Config.Database.Driver))
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.Optional{Checker: health.NewMongoDBChecker(a.mongoClient)})
	}
	if a.icons != nil {
		icons := a.icons
		healthRegistry.Register(health.Optional{Checker: health.NewFuncChecker("icon_breaker", func(context.Context) error {
			if state := icons.State(); state == "open" {
				return fmt.Errorf("circuit breaker is %s", state)
			}
			return nil
		})})
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) outputTopic() string {
	if t := a.Config.Broker.Kafka.OutputTopic; t != "" {
		return t
	}
	return constants.DefaultOutputTopic
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.sweeper.Run(logging.WithServiceName(gCtx, constants.ServiceNotify))
	})

	if a.Consumer != nil {
		inputTopic := a.Config.Broker.Kafka.InputTopic
		if inputTopic == "" {
			inputTopic = constants.DefaultInputTopic
		}
		g.Go(func() error {
			return a.Consumer.Consume(gCtx, inputTopic, a.handlePush(a.outputTopic()))
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.WithoutCancel(ctx))
	})

	return g.Wait()
}

// handlePush publishes the notification as soon as the run delivers. An error
// is returned only when publishing failed, so the consumer retries the push.
func (a *App) handlePush(outputTopic string) func(context.Context, models.InboundPush) error {
	return func(ctx context.Context, push models.InboundPush) error {
		if push.Metadata.Source == "" {
			push.Metadata.Source = "kafka"
		}

		var publishErr error
		n, err := a.notifier.Handle(ctx, push, func(n models.Notification) {
			publishErr = a.Producer.Publish(ctx, outputTopic, n)
		})
		if err != nil {
			a.Logger.ErrorwCtx(ctx, "Push rejected", "error", err)
			return nil
		}
		if publishErr != nil {
			return fmt.Errorf("failed to publish notification: %w", publishErr)
		}

		a.Logger.InfowCtx(ctx, "Notification published",
			"output_topic", outputTopic,
			"outcome", n.Outcome,
		)
		return nil
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceNotify)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down notify service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		timeoutCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if a.server != nil {
			if err := a.server.Shutdown(timeoutCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.writer != nil {
			if err := a.writer.Close(timeoutCtx); err != nil {
				errs = append(errs, fmt.Errorf("archive writer drain error: %w", err))
			}
		}

		if a.prefs != nil {
			if err := a.prefs.Close(); err != nil {
				errs = append(errs, fmt.Errorf("preferences close error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(timeoutCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.store, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}

// cmd/job-board/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"job-board/internal/api"
	"job-board/internal/common/auth"
	commonaws "job-board/internal/common/aws"
	"job-board/internal/common/config"
	"job-board/internal/common/database"
	commonhttp "job-board/internal/common/http"
	"job-board/internal/common/logger"
	"job-board/internal/common/observability"
	"job-board/internal/jobboard/applications"
	"job-board/internal/jobboard/companies"
	"job-board/internal/jobboard/detail"
	"job-board/internal/jobboard/feed"
	"job-board/internal/jobboard/listing"
	"job-board/internal/jobboard/notify"
	"job-board/internal/jobboard/postings"
	"job-board/internal/jobboard/savedjobs"
	"job-board/internal/jobboard/search"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting job board...", zap.String("version", cfg.App.Version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint, nil)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		applied, err := database.Migrate(ctx, pg.DB, database.Migrations)
		if err != nil {
			zapLog.Fatal("migrations failed", zap.Error(err))
		}
		zapLog.Info("Migrations applied", zap.Strings("versions", applied))
	}
	if err := database.EnsureChangeFeed(ctx, pg.DB, cfg.Feed.Channel); err != nil {
		zapLog.Fatal("change feed trigger failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch; search is optional ---
	var esClient *database.ElasticsearchClient
	if cfg.Search.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("search disabled: elasticsearch unavailable", zap.Error(err))
			esClient = nil
		} else {
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Storage and notifications ---
	storageAWS, err := commonaws.LoadConfig(ctx, cfg.Storage.Region)
	if err != nil {
		zapLog.Fatal("storage AWS config failed", zap.Error(err))
	}
	store := commonaws.NewS3Client(storageAWS, cfg.Storage)

	notifyCfg := notify.LoadConfig(cfg.Notifications)
	var sesSvc notify.SESService
	var snsSvc notify.SNSService
	if notifyCfg.EmailEnabled || notifyCfg.EventsEnabled {
		notifyAWS, err := commonaws.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("notification AWS config failed", zap.Error(err))
		}
		if notifyCfg.EmailEnabled {
			sesSvc = commonaws.NewSESClient(notifyAWS)
		}
		if notifyCfg.EventsEnabled {
			snsSvc = commonaws.NewSNSClient(notifyAWS)
		}
	}
	notifier := notify.NewNotifier(notifyCfg, sesSvc, snsSvc, log)

	// --- Change feed ---
	hub := feed.NewHub(cfg.Feed.SubscriberBuffer, log)
	defer hub.Close()

	listener, err := feed.NewListener(pg.DSN, cfg.Feed, feed.NewSQLJobLoader(pg.DB), hub, log)
	if err != nil {
		zapLog.Fatal("change feed listener failed", zap.Error(err))
	}
	defer listener.Close()
	go func() {
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLog.Error("change feed stopped", zap.Error(err))
		}
	}()

	listings := listing.NewStore(pg.DB, rdb.Client, config.GetSeconds(cfg.Feed.FilterOptionsTTL), log)

	var searchIndex *search.Index
	if esClient != nil {
		searchIndex = search.NewIndex(esClient.Client, cfg.Search.Index)
		if err := searchIndex.Ensure(ctx); err != nil {
			zapLog.Warn("search index check failed", zap.Error(err))
		}
		indexer := search.NewIndexer(searchIndex, listings, log)
		sub := hub.Subscribe()
		go func() {
			if err := indexer.Run(ctx, sub); err != nil && !errors.Is(err, context.Canceled) {
				zapLog.Error("search indexer stopped", zap.Error(err))
			}
		}()
		// seed the index with the current list
		hub.Publish(feed.ChangeEvent{Op: feed.OpResync})
	}
	searchSvc := search.NewService(searchIndex, cfg.Search, log)

	// --- Auth ---
	keycloak := auth.NewKeycloakClient(cfg.Auth, commonhttp.NewClient(10*time.Second), rdb.Client, log)
	signIn := auth.NewSignInFlow(keycloak, rdb.Client, config.GetSeconds(cfg.Auth.SignInStateTTL))

	deps := api.Deps{
		Verifier:     keycloak,
		SignIn:       signIn,
		Listings:     listings,
		Detail:       detail.NewService(detail.NewStore(pg.DB), log),
		Postings:     postings.NewService(pg.DB, listings, log),
		Applications: applications.NewService(applications.LoadConfig(cfg.Storage), pg.DB, store, notifier, log),
		SavedJobs:    savedjobs.NewService(pg.DB, log),
		Companies:    companies.NewService(pg.DB, store, cfg.Storage.LogoBucket, cfg.Storage.MaxUploadBytes, log),
		Hub:          hub,
		Obs:          obs,
		Readiness: map[string]api.ReadinessCheck{
			"postgres": pg.Ping,
			"redis":    rdb.Ping,
		},
	}
	if searchSvc.Enabled() {
		deps.Search = searchSvc
		deps.Readiness["elasticsearch"] = esClient.Ping
	}

	server := api.NewServer(deps, api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SignInPath:     cfg.Auth.SignInPath,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		RequestTimeout: config.GetDuration(cfg.Server.RequestTimeout),
	}, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down job board...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	// deliveries are bounded by notifications.timeout
	notifier.Wait()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("observability shutdown failed", zap.Error(err))
	}
	zapLog.Info("Job board stopped")
}

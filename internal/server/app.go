// Package server wires the ingestion gateway together: it opens the catalog
// database, Redis and object storage, builds the upload services and runs
// the HTTP API and the gRPC health endpoint until a termination signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/auth"
	"github.com/dmitrijs2005/driveingest/internal/server/config"
	"github.com/dmitrijs2005/driveingest/internal/server/events"
	"github.com/dmitrijs2005/driveingest/internal/server/health"
	"github.com/dmitrijs2005/driveingest/internal/server/httpapi"
	"github.com/dmitrijs2005/driveingest/internal/server/idgen"
	"github.com/dmitrijs2005/driveingest/internal/server/media"
	"github.com/dmitrijs2005/driveingest/internal/server/policy"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/driveingest/internal/server/services"
	"github.com/dmitrijs2005/driveingest/internal/server/sessions"
	"github.com/dmitrijs2005/driveingest/internal/server/storage"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/driveingest/internal/server/grpc"
)

const (
	checkInterval = 10 * time.Second
	checkTimeout  = 3 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	pubsub  *redis.Client
	storage *storage.S3Storage
	monitor *health.Monitor
	handler *httpapi.Handler
}

// NewApp connects to every backend and builds the service graph. The
// context bounds only the connection attempts.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if c.RunMigrations {
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
	}

	rdb, err := sessions.OpenClient(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	pubsub, err := openPubsub(ctx, c, rdb)
	if err != nil {
		_ = rdb.Close()
		_ = db.Close()
		return nil, fmt.Errorf("pubsub redis: %w", err)
	}

	app := &App{config: c, logger: logger, db: db, redis: rdb, pubsub: pubsub}
	if err := app.build(ctx, rm); err != nil {
		app.close()
		return nil, err
	}
	return app, nil
}

// openPubsub returns the client events go out on: shared, unless a separate
// pub/sub Redis is configured.
func openPubsub(ctx context.Context, c *config.Config, shared *redis.Client) (*redis.Client, error) {
	if c.PubsubRedisAddr == "" {
		return shared, nil
	}
	return sessions.OpenClient(ctx, c.PubsubRedisAddr, c.PubsubRedisPassword, c.PubsubRedisDB)
}

func (app *App) build(ctx context.Context, rm repomanager.RepositoryManager) error {
	c := app.config

	st, err := storage.New(ctx, c, app.logger)
	if err != nil {
		return fmt.Errorf("storage init error: %w", err)
	}
	app.storage = st

	publisher, err := events.NewRedisPublisher(app.pubsub, c.InstanceURL)
	if err != nil {
		return fmt.Errorf("publisher init error: %w", err)
	}

	ids, err := idgen.New(c.IDMethod)
	if err != nil {
		return fmt.Errorf("id generator init error: %w", err)
	}

	extractor, err := app.newExtractor(st)
	if err != nil {
		return err
	}

	policies := policy.NewResolver(app.db, rm, c.MetaCacheTTL, c.RoleCacheTTL, app.logger)
	preflight := services.NewPreflightService(app.db, rm, policies, app.logger)
	registrar := services.NewRegistrar(services.RegistrarDeps{
		DB:            app.db,
		Tx:            dbx.TxOn(app.db),
		Repomanager:   rm,
		Policy:        policies,
		Extractor:     extractor,
		Storage:       st,
		Publisher:     publisher,
		IDs:           ids,
		Prefix:        c.Prefix,
		PublicBaseURL: c.PublicBaseURL,
		Logger:        app.logger,
	})

	app.monitor = health.NewMonitor(checkInterval, checkTimeout, app.logger)
	app.monitor.Register("postgres", app.db.PingContext)
	app.monitor.Register("redis", func(ctx context.Context) error { return app.redis.Ping(ctx).Err() })
	if app.pubsub != app.redis {
		app.monitor.Register("redis-pubsub", func(ctx context.Context) error { return app.pubsub.Ping(ctx).Err() })
	}
	app.monitor.Register("storage", st.Ping)

	app.handler = httpapi.NewHandler(httpapi.HandlerDeps{
		Auth:            auth.NewResolver(app.db, rm, c.SecretKey, app.logger),
		Uploads:         services.NewUploadService(app.db, rm, sessions.NewRedisStore(app.redis), st, preflight, registrar, c, app.logger),
		Creator:         services.NewCreateService(st, preflight, registrar, c.Prefix, app.logger),
		Health:          app.monitor,
		PartMaxSize:     c.PartMaxSize,
		FullUploadLimit: c.FullUploadLimit,
		Logger:          app.logger,
	})
	return nil
}

// newExtractor builds the bounded metadata pipeline. Video support is
// left out when no ffmpeg binary is configured.
func (app *App) newExtractor(st *storage.S3Storage) (media.Extractor, error) {
	c := app.config

	images, err := media.NewImageExtractor(media.ImageOptions{
		ThumbnailSize:    c.ThumbnailSize,
		ThumbnailQuality: c.ThumbnailQuality,
		ThumbnailFilter:  c.ThumbnailFilter,
	}, nil, app.logger)
	if err != nil {
		return nil, fmt.Errorf("image extractor: %w", err)
	}

	var video media.Extractor
	if c.FFmpegPath != "" {
		video = media.NewVideoExtractor(c.FFmpegPath, st, images, app.logger)
	}

	return media.NewLimitedExtractor(media.NewPipeline(images, video, st, app.logger), c.MetadataWorkers), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, s *gs.GRPCServer, cancelFunc context.CancelFunc) {
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, httpapi.NewRouter(app.handler, app.logger), app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails,
// then releases every backend connection.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	grpcServer := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger)
	app.monitor.OnChange(grpcServer.SetDependencies)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, grpcServer, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.monitor.Run(ctx)
	}()

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if app.pubsub != nil && app.pubsub != app.redis {
		_ = app.pubsub.Close()
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}

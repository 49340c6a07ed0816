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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/thriftit-backend/internal/assets"
	"github.com/AnshRaj112/thriftit-backend/internal/auth"
	"github.com/AnshRaj112/thriftit-backend/internal/config"
	"github.com/AnshRaj112/thriftit-backend/internal/database"
	"github.com/AnshRaj112/thriftit-backend/internal/handlers"
	"github.com/AnshRaj112/thriftit-backend/internal/localdb"
	"github.com/AnshRaj112/thriftit-backend/internal/middleware"
	"github.com/AnshRaj112/thriftit-backend/internal/migrate"
	"github.com/AnshRaj112/thriftit-backend/internal/network"
	"github.com/AnshRaj112/thriftit-backend/internal/remote"
	"github.com/AnshRaj112/thriftit-backend/internal/routes"
	"github.com/AnshRaj112/thriftit-backend/internal/services"
	"github.com/AnshRaj112/thriftit-backend/internal/syncer"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogger(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local cache
	db, err := database.ConnectPostgres(ctx, cfg.PostgresURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer db.Close()
	if err := migrate.Up(ctx, db.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate local cache")
	}

	// Remote store
	mdb, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer func() {
		if err := mdb.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("MongoDB disconnect failed")
		}
	}()

	rdb, err := database.ConnectRedis(ctx, cfg.RedisURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer rdb.Close()

	host, err := newAssetHost(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.AssetBackend).Msg("failed to configure asset host")
	}
	spool, err := assets.NewSpool(cfg.SpoolDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open image spool")
	}
	dispatcher := assets.NewDispatcher(host, cfg.UploadTimeout)

	store := remote.NewStore(mdb.DB)
	localItems := localdb.NewItemStore(db)
	localUsers := localdb.NewUserStore(db)

	feed := services.NewFeedHub()
	reconciler := syncer.NewReconciler(localItems, feed)
	listener := syncer.NewItemSync(store.Items, reconciler)
	observer := network.NewObserver(store, cfg.ConnectivityInterval)

	uploads := services.NewUploadService(dispatcher, spool, localItems, store.Items, observer, feed)
	users := services.NewUserService(localUsers, store.Users, observer, services.NewCache(rdb), uploads)
	items := services.NewItemService(localItems, store.Items, spool, users, observer, reconciler, feed)
	provider := auth.NewRedisProvider(rdb, auth.LogSender{}, auth.WithCodeTTL(cfg.OTPTTL))
	sessions := auth.NewSessions(rdb, cfg.JWTSecret, cfg.SessionTTL)
	authService := services.NewAuthService(provider, sessions, users, cfg.DefaultCountryCode)

	// Background sync
	statuses, unsubscribe := observer.Subscribe()
	defer unsubscribe()
	go observer.Run(ctx)
	go syncer.NewPendingSync(uploads, listener).Run(ctx, statuses)
	listener.Start(ctx)

	ipLimiter := middleware.NewIPLimiter(rate.Limit(20), 40)
	go ipLimiter.RunCleanup(ctx)
	otpLimiter := middleware.NewRedisLimiter(rdb, "otp", 5, 15*time.Minute, time.Hour)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.IsProduction() {
		r.Use(middleware.SecurityHeaders)
	}
	r.Use(ipLimiter.Middleware)

	h := handlers.New(items, uploads, users, authService, feed, cfg.AllowedOrigins)
	routes.SetupRoutes(r, h, authService, otpLimiter.Middleware)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.UploadTimeout,
		WriteTimeout:      cfg.UploadTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Str("assets", cfg.AssetBackend).Msg("ThriftIt backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	dispatcher.Wait()
	<-listener.Done()
	log.Info().Msg("server exited")
}

func newAssetHost(ctx context.Context, cfg *config.Config) (assets.Host, error) {
	switch cfg.AssetBackend {
	case config.AssetBackendCloudinary:
		c := cfg.Cloudinary
		return assets.NewCloudinary(c.CloudName, c.APIKey, c.APISecret, c.UploadPreset)
	case config.AssetBackendMinIO:
		m := cfg.MinIO
		return assets.NewMinIO(m.Endpoint, m.AccessKey, m.SecretKey, m.Bucket, m.PublicURL, m.UseSSL)
	case config.AssetBackendS3:
		return assets.NewS3(ctx, assets.S3Config(cfg.S3))
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.AssetBackend)
	}
}

func setupLogger(level string, production bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	if !production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

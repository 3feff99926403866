package main

import (
	"context"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akozlov/recordbook/internal/config"
	eventsHandler "github.com/akozlov/recordbook/internal/events/handler"
	"github.com/akozlov/recordbook/internal/events/hub"
	"github.com/akozlov/recordbook/internal/filestore"
	mwCors "github.com/akozlov/recordbook/internal/http-server/middleware/cors"
	mwLogger "github.com/akozlov/recordbook/internal/http-server/middleware/logger"
	mwMetrics "github.com/akozlov/recordbook/internal/http-server/middleware/metrics"
	"github.com/akozlov/recordbook/internal/lib/logger/handlers/slogpretty"
	"github.com/akozlov/recordbook/internal/lib/logger/sl"
	recordsHandler "github.com/akozlov/recordbook/internal/records/handler"
	recordsrepo "github.com/akozlov/recordbook/internal/records/repo"
	"github.com/akozlov/recordbook/internal/storage/postgres"
	uploadsHandler "github.com/akozlov/recordbook/internal/uploads/handler"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting recordbook", slog.String("env", cfg.Env))

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err := postgres.Migrate(cfg.DatabaseDSN); err != nil {
		log.Error("failed to run migrations", sl.Err(err))
		os.Exit(1)
	}

	store, err := setupFileStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to init file store", sl.Err(err))
		os.Exit(1)
	}

	h := hub.NewHub()
	go h.Run()

	repo := recordsrepo.New(db)

	rh := recordsHandler.New(
		repo,
		store,
		h,
		log,
		cfg.Uploads.MaxFiles,
		cfg.Uploads.MaxUploadSize,
	)

	uh := uploadsHandler.New(store, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(mwCors.New(cfg.CORS.AllowedOrigin))
	router.Use(mwMetrics.New())

	router.Route("/api/records", func(r chi.Router) {
		r.Get("/", rh.GetRecords())
		r.Post("/", rh.CreateRecord())
		r.Delete("/", rh.DeleteRecords())

		r.Get("/{id}", rh.GetRecord())
		r.Put("/{id}", rh.UpdateRecord())
		r.Delete("/{id}", rh.DeleteRecord())

		r.Delete("/{id}/files", rh.DeleteRecordFile())
	})

	router.Get("/uploads/{filename}", uh.Serve())

	router.Get("/ws", eventsHandler.New(h, log))

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err := srv.ListenAndServe(); err != nil {
		log.Error("failed to start server", sl.Err(err))
	}

	log.Error("server stopped")
}

func setupFileStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (filestore.Store, error) {
	switch cfg.Storage.Backend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Storage.S3.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.Storage.S3.AccessKey, cfg.Storage.S3.SecretKey, ""),
			),
		)
		if err != nil {
			return nil, err
		}

		s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Storage.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
				o.UsePathStyle = true
			}
		})

		log.Info("using s3 file store", slog.String("bucket", cfg.Storage.S3.Bucket))

		return filestore.NewS3(cfg.Storage.S3.Bucket, s3Client), nil

	default:
		log.Info("using local file store", slog.String("dir", cfg.Storage.Dir))

		return filestore.NewLocal(cfg.Storage.Dir)
	}
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

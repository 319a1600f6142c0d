package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/molpadia/molpastudio/internal/app"
	"github.com/molpadia/molpastudio/internal/auth"
	"github.com/molpadia/molpastudio/internal/config"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/infrastructure/media"
	"github.com/molpadia/molpastudio/internal/infrastructure/persistence"
	"github.com/molpadia/molpastudio/internal/logging"
	"github.com/molpadia/molpastudio/internal/mediaurl"
	"github.com/molpadia/molpastudio/internal/metrics"
	"github.com/molpadia/molpastudio/internal/middleware"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal("invalid configuration: %v", err)
	}

	addr := flag.String("addr", cfg.Addr, "web server address")
	cert := flag.String("cert", cfg.CertFile, "path of TLS certificate file")
	key := flag.String("key", cfg.KeyFile, "path of TLS private key file")
	level := flag.String("log-level", logging.GetLevel().String(), "log level (debug, info, warn, error)")
	flag.Parse()
	logging.SetLevel(logging.ParseLevel(*level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.InitializeMetrics()

	var sess *session.Session
	if cfg.DBBackend == "dynamodb" || cfg.MediaBackend == "s3" {
		sess = session.Must(session.NewSession())
	}

	repos, err := persistence.Open(ctx, cfg, sess)
	if err != nil {
		logging.Fatal("failed to open %s backend: %v", cfg.DBBackend, err)
	}
	defer repos.Close()

	var (
		store        repository.MediaStore
		mediaHandler http.Handler
	)
	switch cfg.MediaBackend {
	case "s3":
		s3store := media.NewS3Store(sess, cfg.UploadBucket, cfg.DeliveryBucket)
		store, mediaHandler = s3store, s3store
	default:
		local, err := media.NewLocalStore(cfg.MediaDir)
		if err != nil {
			logging.Fatal("failed to open media directory: %v", err)
		}
		store, mediaHandler = local, local
	}

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.LogStaticFiles = cfg.LogStaticRequests

	router := app.NewRouter(app.Options{
		Videos:        repos.Videos,
		Users:         repos.Users,
		Media:         store,
		Sessions:      auth.NewSessions(cfg.SessionSecret, cfg.SessionDuration),
		Resolver:      mediaurl.NewResolver(cfg.MediaDeliveryURL),
		MediaHandler:  mediaHandler,
		MaxUploadSize: cfg.MaxUploadSize,
		SecureCookies: *cert != "" && *key != "",
		Logging:       logCfg,
		Ping:          repos.Ping,
	})

	srv := &http.Server{
		Handler:           router,
		Addr:              *addr,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads and media delivery stream large bodies.
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("the server started on %s", *addr)
		if *cert != "" && *key != "" {
			errc <- srv.ListenAndServeTLS(*cert, *key)
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Error("server stopped: %v", err)
		}
	case <-ctx.Done():
		logging.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error("graceful shutdown failed: %v", err)
		}
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Frusadev/frusablog-backend/internal/auth"
	"github.com/Frusadev/frusablog-backend/internal/config"
	"github.com/Frusadev/frusablog-backend/internal/es"
	"github.com/Frusadev/frusablog-backend/internal/handlers"
	"github.com/Frusadev/frusablog-backend/internal/logging"
	"github.com/Frusadev/frusablog-backend/internal/mail"
	authmw "github.com/Frusadev/frusablog-backend/internal/middleware/auth"
	logmw "github.com/Frusadev/frusablog-backend/internal/middleware/logging"
	"github.com/Frusadev/frusablog-backend/internal/mykafka"
	"github.com/Frusadev/frusablog-backend/internal/storage"
	httpserver "github.com/Frusadev/frusablog-backend/internal/transport/http"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LOG_LEVEL)

	ctx := context.Background()
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		logger.Error("db init failed", "error", err)
		os.Exit(1)
	}

	var mailer mail.Dispatcher
	if cfg.SMTP_HOST != "" {
		mailer, err = mail.NewSMTPMailer(cfg.SMTP_HOST, cfg.SMTP_PORT, cfg.SMTP_USER, cfg.SMTP_PASSWORD, cfg.APP_EMAIL_ADDRESS)
		if err != nil {
			logger.Error("mailer init failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("SMTP_HOST unset, mails are logged instead of sent")
		mailer = &mail.LogMailer{}
	}

	store, err := storage.New(storage.Config{
		Type:        cfg.STORAGE_TYPE,
		LocalDir:    cfg.STORAGE_DIR,
		S3Bucket:    cfg.STORAGE_S3_BUCKET,
		S3Region:    cfg.STORAGE_S3_REGION,
		S3Endpoint:  cfg.STORAGE_S3_ENDPOINT,
		S3AccessKey: cfg.STORAGE_S3_ACCESS_KEY,
		S3SecretKey: cfg.STORAGE_S3_SECRET_KEY,
	})
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}

	prod, err := mykafka.NewProducer([]string{cfg.KAFKA_ADDRESS})
	if err != nil {
		logger.Warn("kafka unavailable, events are dropped", "error", err)
	} else {
		defer prod.Close()
	}

	esClient, err := es.NewClient(cfg)
	if err != nil {
		logger.Warn("elasticsearch unavailable, search is disabled", "error", err)
		esClient = nil
	}

	authSvc := &auth.Service{
		DB:              db,
		Mail:            mailer,
		VerificationURL: cfg.VERIFICATION_URL,
		LoginURL:        cfg.LOGIN_URL,
		AppEmail:        cfg.APP_EMAIL_ADDRESS,
	}
	session := authmw.NewSessionAuth(authSvc)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), logmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:                  db,
		Session:             session,
		AuthHandler:         &handlers.AuthHandler{Auth: authSvc, Producer: prod},
		PostHandler:         &handlers.PostHandler{DB: db, Producer: prod, ES: esClient, ESIndex: cfg.ES_INDEX},
		CommentHandler:      &handlers.CommentHandler{DB: db, Producer: prod},
		TagHandler:          &handlers.TagHandler{DB: db},
		MediaHandler:        &handlers.MediaHandler{DB: db, Storage: store},
		NotificationHandler: &handlers.NotificationHandler{DB: db},
		UserHandler:         &handlers.UserHandler{DB: db, Producer: prod},
		SearchHandler:       &handlers.SearchHandler{ES: esClient, ESIndex: cfg.ES_INDEX},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         cfg.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", cfg.HTTP_ADDR)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

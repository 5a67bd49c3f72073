package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/classroom-api/api/swagger"
	"github.com/noah-isme/classroom-api/internal/events"
	"github.com/noah-isme/classroom-api/internal/handler"
	"github.com/noah-isme/classroom-api/internal/repository"
	"github.com/noah-isme/classroom-api/internal/router"
	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/pkg/cache"
	"github.com/noah-isme/classroom-api/pkg/config"
	"github.com/noah-isme/classroom-api/pkg/database"
	"github.com/noah-isme/classroom-api/pkg/jobs"
	"github.com/noah-isme/classroom-api/pkg/logger"
	"github.com/noah-isme/classroom-api/pkg/storage"
	"github.com/noah-isme/classroom-api/pkg/validation"
)

// @title Classroom API
// @version 1.0.0
// @description Assignments, submissions, announcements, discussions, notifications and voice calls.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Inbox.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, inbox cache disabled", zap.Error(err))
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validation.New()

	userRepo := repository.NewUserRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	voiceRepo := repository.NewVoiceCallRepository(db)

	blobs, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	downloadBase := strings.TrimRight(cfg.APIPrefix, "/") + "/files"
	files := service.NewFileService(blobs, signer, cfg.Uploads.MaxFileSizeBytes, downloadBase, logr)

	inboxCache := service.NewCacheService(cacheRepo, metrics, logr, service.CacheConfig{
		Enabled:    redisClient != nil,
		DefaultTTL: cfg.Inbox.CacheTTL,
		Namespace:  cfg.Inbox.CacheNamespace,
	})
	inbox := service.NewNotificationService(notificationRepo, inboxCache, logr)
	fanOut := service.NewNotificationFanOut(userRepo, notificationRepo, inbox, metrics, logr, service.FanOutConfig{
		BatchSize: cfg.Notifications.BatchSize,
		Timeout:   cfg.Notifications.FanOutTimeout,
	})

	var publisher events.Publisher
	if cfg.Notifications.Async {
		queue := events.NewQueueDispatcher(fanOut, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		})
		queue.Start(context.Background())
		defer func() {
			drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			queue.Stop(drainCtx)
		}()
		publisher = queue
	} else {
		publisher = events.NewSyncDispatcher(fanOut, logr)
	}

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	assignments := service.NewAssignmentService(assignmentRepo, files, publisher, validate, logr)
	submissions := service.NewSubmissionService(submissionRepo, assignmentRepo, files, publisher, validate, logr)
	announcements := service.NewAnnouncementService(announcementRepo, publisher, validate, logr)
	discussions := service.NewDiscussionService(discussionRepo, publisher, validate, logr)
	voiceCalls := service.NewVoiceCallService(voiceRepo, validate, metrics, logr, service.VoiceCallConfig{
		ChannelPrefix: cfg.Voice.ChannelPrefix,
		ChannelBytes:  cfg.Voice.ChannelBytes,
	})

	checks := map[string]handler.Pinger{"database": handler.PingerFunc(db.PingContext)}
	if redisClient != nil {
		checks["redis"] = cacheRepo
	}

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metrics,
		Tokens:         authService,
	}, router.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Assignments:   handler.NewAssignmentHandler(assignments),
		Submissions:   handler.NewSubmissionHandler(submissions),
		Announcements: handler.NewAnnouncementHandler(announcements),
		Discussions:   handler.NewDiscussionHandler(discussions),
		Notifications: handler.NewNotificationHandler(inbox),
		VoiceCalls:    handler.NewVoiceCallHandler(voiceCalls),
		Files:         handler.NewFileHandler(files),
		Metrics:       handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

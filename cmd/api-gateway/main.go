package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/router"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Class and exam timetables with reference resolution and double-booking checks
// @BasePath /api/v1
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
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to apply schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, view cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, redisClient != nil)

	teacherRepo := repository.NewTeacherRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	classRepo := repository.NewClassRepository(db)
	examRepo := repository.NewExamRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)

	queue := jobs.NewQueue("reference-audit", jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		MaxRetries: 2,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	var auditQueue *jobs.Queue
	if cfg.Audit.Enabled {
		auditQueue = queue
	}
	audits := service.NewReferenceAuditService(classRepo, examRepo, referenceRepo, queueOrNil(auditQueue), cacheSvc, metrics, logr)
	queue.Register(service.JobReferenceAudit, audits.Handle)

	validator := timetable.NewValidator()
	resolver := service.NewReferenceResolver(referenceRepo, metrics, logr)
	opts := service.ScheduleOptionsFromConfig(cfg.Schedule)

	teacherSvc := service.NewTeacherService(teacherRepo, validator, cacheSvc, audits, opts, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validator, cacheSvc, audits, opts, logr)
	classSvc := service.NewClassService(classRepo, resolver, validator, cacheSvc, metrics, audits, opts, logr)
	examSvc := service.NewExamService(examRepo, resolver, validator, cacheSvc, metrics, opts, logr)
	exportSvc := service.NewTimetableExportService(classSvc, export.Renderers(), logr)
	tokens := service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)

	checks := []handler.ReadinessCheck{{Name: "postgres", Probe: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Probe: cacheRepo.Ping})
	}

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metrics,
		Tokens:         tokens,
		Teachers:       handler.NewTeacherHandler(teacherSvc, classSvc),
		Subjects:       handler.NewSubjectHandler(subjectSvc),
		Classes:        handler.NewClassHandler(classSvc, exportSvc),
		Exams:          handler.NewExamHandler(examSvc),
		Audit:          handler.NewAuditHandler(audits),
		Observe:        handler.NewMetricsHandler(metrics, checks...),
	})

	var scheduler *jobs.Scheduler
	if cfg.Audit.Enabled {
		queue.Start(ctx)
		defer queue.Stop()

		scheduler = jobs.NewScheduler(logr)
		if err := scheduler.Every(ctx, "reference-audit", cfg.Audit.Cron, audits.RunScheduled); err != nil {
			logr.Fatal("failed to schedule reference audit", zap.Error(err))
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// queueOrNil keeps a nil *jobs.Queue from becoming a non-nil interface.
func queueOrNil(q *jobs.Queue) interface{ Enqueue(jobs.Job) error } {
	if q == nil {
		return nil
	}
	return q
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-engine/api/swagger"
	"github.com/noah-isme/timetable-engine/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-engine/internal/middleware"
	"github.com/noah-isme/timetable-engine/internal/models"
	"github.com/noah-isme/timetable-engine/internal/repository"
	"github.com/noah-isme/timetable-engine/internal/service"
	"github.com/noah-isme/timetable-engine/pkg/cache"
	"github.com/noah-isme/timetable-engine/pkg/config"
	"github.com/noah-isme/timetable-engine/pkg/database"
	"github.com/noah-isme/timetable-engine/pkg/export"
	"github.com/noah-isme/timetable-engine/pkg/jobs"
	"github.com/noah-isme/timetable-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-engine/pkg/middleware/requestid"
	"github.com/noah-isme/timetable-engine/pkg/notify"
)

// @title Timetable Engine API
// @version 1.0.0
// @description Timetable conflict checking, generation and draft publication
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	checks := map[string]handler.Pinger{"postgres": db}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		checks["redis"] = cache.Pinger{Client: redisClient}
	}

	publisher, err := notify.NewMQTTPublisher(cfg.MQTT, logr)
	if err != nil {
		logr.Sugar().Warnw("mqtt unavailable, timetable events disabled", "error", err)
		publisher = notify.NopPublisher{}
	}
	defer publisher.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Redis.CacheTTL, logr, redisClient != nil)

	entryRepo := repository.NewTimetableEntryRepository(db)
	enrollmentRepo := repository.NewCourseEnrollmentRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	availabilityRepo := repository.NewTrainerAvailabilityRepository(db)
	settingsRepo := repository.NewTimetableSettingsRepository(db)
	scheduleRepo := repository.NewClassGroupScheduleRepository(db)

	conflictSvc := service.NewConflictService(entryRepo, enrollmentRepo, validate, logr)
	viewSvc := service.NewTimetableViewService(entryRepo, roomRepo, logr)
	scheduleSvc := service.NewClassGroupScheduleService(entryRepo, enrollmentRepo, scheduleRepo, cacheSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)
	inputSvc := service.NewSchedulingInputService(availabilityRepo, settingsRepo, validate, logr)
	lifecycleSvc := service.NewLifecycleService(entryRepo, scheduleSvc, db, cacheSvc, publisher, metrics, logr)
	generatorSvc := service.NewTimetableGenerationService(enrollmentRepo, roomRepo, availabilityRepo, settingsRepo, entryRepo, db, metrics, validate, logr, service.GeneratorConfig{
		MaxBacktracks:           cfg.Scheduler.MaxBacktracks,
		MaxCandidatesPerSession: cfg.Scheduler.MaxCandidatesPerSession,
	})
	tokenSvc := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	var taskSvc *service.GenerationTaskService
	if cfg.Scheduler.Enabled {
		var store interface {
			Save(ctx context.Context, task *models.GenerationTask) error
			Get(ctx context.Context, id string) (*models.GenerationTask, error)
		}
		if redisClient != nil {
			store = repository.NewRedisTaskStatusRepository(redisClient, cfg.Scheduler.TaskTTL)
		} else {
			store = repository.NewMemoryTaskStatusRepository(cfg.Scheduler.TaskTTL)
		}
		taskSvc = service.NewGenerationTaskService(generatorSvc, store, validate, metrics, logr)
		taskSvc.AttachNotifier(publisher)
		queue := jobs.NewQueue("timetable-generation", taskSvc.Handle, jobs.QueueConfig{
			Workers:        cfg.Scheduler.WorkerConcurrency,
			BufferSize:     cfg.Scheduler.QueueBuffer,
			DisableRetries: true,
			OnFailure:      taskSvc.OnFailure,
			Logger:         logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		taskSvc.AttachQueue(queue)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		tokens:     tokenSvc,
		timetable:  handler.NewTimetableHandler(conflictSvc, viewSvc),
		lifecycle:  handler.NewLifecycleHandler(lifecycleSvc),
		generation: handler.NewGenerationHandler(generatorSvc, taskSvc),
		schedules:  handler.NewClassGroupScheduleHandler(scheduleSvc, cfg.Exports.Enabled),
		inputs:     handler.NewSchedulingInputHandler(inputSvc),
		metrics:    metricsHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "scheduler", cfg.Scheduler.Enabled, "redis", redisClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Sugar().Infow("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type routeDeps struct {
	tokens     internalmiddleware.TokenValidator
	timetable  *handler.TimetableHandler
	lifecycle  *handler.LifecycleHandler
	generation *handler.GenerationHandler
	schedules  *handler.ClassGroupScheduleHandler
	inputs     *handler.SchedulingInputHandler
	metrics    *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	api.Use(internalmiddleware.JWT(deps.tokens))
	schedulers := internalmiddleware.RequireRoles(models.SchedulingRoles...)

	timetable := api.Group("/timetable")
	timetable.POST("/conflicts", deps.timetable.CheckConflicts)
	timetable.POST("/validate-entry", deps.timetable.ValidateEntry)
	timetable.GET("/entries", deps.timetable.ListEntries)
	timetable.GET("/my-schedule", internalmiddleware.RequireRoles(models.RoleTrainer, models.RoleTrainee), deps.timetable.MySchedule)

	timetable.GET("/draft-versions", schedulers, deps.lifecycle.DraftVersions)
	timetable.GET("/draft-summary", schedulers, deps.lifecycle.DraftSummary)
	timetable.GET("/versions/:version/status", schedulers, deps.lifecycle.VersionStatus)
	timetable.POST("/publish-draft", schedulers, deps.lifecycle.Publish)
	timetable.POST("/discard-draft", schedulers, deps.lifecycle.Discard)
	timetable.POST("/revert-to-draft", schedulers, deps.lifecycle.Revert)

	timetable.POST("/generate", schedulers, deps.generation.Generate)
	timetable.GET("/generate/task-status", schedulers, deps.generation.TaskStatus)

	api.GET("/rooms/:id/availability", deps.timetable.RoomAvailability)

	schedules := api.Group("/class-group-schedules")
	schedules.GET("/:classGroupId", deps.schedules.Get)
	schedules.POST("/:classGroupId/regenerate", schedulers, deps.schedules.Regenerate)
	schedules.GET("/:classGroupId/export", deps.schedules.Export)

	admins := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	availability := api.Group("/trainer-availability")
	availability.GET("/mine", internalmiddleware.RequireRoles(models.RoleTrainer), deps.inputs.MyAvailability)
	availability.POST("/bulk", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTrainer), deps.inputs.BulkCreateAvailability)

	api.GET("/timetable-settings", schedulers, deps.inputs.Settings)
	api.PUT("/timetable-settings", admins, deps.inputs.SaveSettings)

	api.GET("/metrics/summary", schedulers, deps.metrics.Snapshot)
}

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

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/formation-lms-api/api/swagger"
	"github.com/noah-isme/formation-lms-api/internal/handler"
	"github.com/noah-isme/formation-lms-api/internal/repository"
	"github.com/noah-isme/formation-lms-api/internal/router"
	"github.com/noah-isme/formation-lms-api/internal/service"
	"github.com/noah-isme/formation-lms-api/pkg/cache"
	"github.com/noah-isme/formation-lms-api/pkg/config"
	"github.com/noah-isme/formation-lms-api/pkg/database"
	"github.com/noah-isme/formation-lms-api/pkg/export"
	"github.com/noah-isme/formation-lms-api/pkg/jobs"
	"github.com/noah-isme/formation-lms-api/pkg/logger"
	"github.com/noah-isme/formation-lms-api/pkg/storage"
)

// @title Formation LMS API
// @version 1.0.0
// @description Learning management backend: formations, courses, quizzes, enrollments and invoices
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
	}

	publicFiles, err := storage.NewLocalStorage(cfg.Storage.BaseDir, cfg.Storage.PublicPrefix)
	if err != nil {
		return fmt.Errorf("init public storage: %w", err)
	}
	privateFiles, err := storage.NewLocalStorage(cfg.Storage.PrivateDir, "")
	if err != nil {
		return fmt.Errorf("init private storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	documents := export.NewDocumentRenderer("Formation LMS")
	validate := validator.New()

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, "lms:", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)

	userRepo := repository.NewUserRepository(db)
	formationRepo := repository.NewFormationRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	gradingRepo := repository.NewGradingRepository(db)
	cascadeRepo := repository.NewCascadeRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	}).WithCache(cacheSvc)
	userSvc := service.NewUserService(userRepo, publicFiles, validate, logr, service.AvatarConfig{
		MaxBytes: cfg.Storage.MaxUploadBytes,
		Size:     cfg.Storage.AvatarSize,
	})
	formationSvc := service.NewFormationService(service.FormationDeps{
		Formations: formationRepo,
		Courses:    courseRepo,
		Users:      userRepo,
		Cascade:    cascadeRepo,
		Audit:      userRepo,
		Tx:         db,
		Files:      publicFiles,
		Cache:      cacheSvc,
	}, validate, logr)
	courseSvc := service.NewCourseService(service.CourseDeps{
		Formations:  formationRepo,
		Courses:     courseRepo,
		Lessons:     lessonRepo,
		Quizzes:     quizRepo,
		Enrollments: enrollmentRepo,
		Cascade:     cascadeRepo,
		Tx:          db,
		Files:       publicFiles,
	}, service.CourseRules{
		MinLessons: cfg.Grading.MinCourseLessons,
		MinQuizzes: cfg.Grading.MinCourseQuizzes,
	}, validate, logr)
	lessonSvc := service.NewLessonService(service.LessonDeps{
		Formations:  formationRepo,
		Courses:     courseRepo,
		Lessons:     lessonRepo,
		Enrollments: enrollmentRepo,
		Files:       publicFiles,
	}, cfg.Storage.MaxUploadBytes, validate, logr)
	quizSvc := service.NewQuizService(service.QuizDeps{
		Formations:  formationRepo,
		Courses:     courseRepo,
		Quizzes:     quizRepo,
		Enrollments: enrollmentRepo,
		Cascade:     cascadeRepo,
		Submissions: gradingRepo,
		Tx:          db,
	}, cfg.Grading.MinQuestionChoice, validate, logr)
	gradingSvc := service.NewGradingService(service.GradingDeps{
		Formations:  formationRepo,
		Courses:     courseRepo,
		Users:       userRepo,
		Enrollments: enrollmentRepo,
		Grading:     gradingRepo,
		Audit:       userRepo,
		Tx:          db,
		Files:       publicFiles,
		Renderer:    documents,
		Metrics:     metrics,
		Cache:       cacheSvc,
	}, cfg.Grading.PassThreshold, logr)

	invoiceSvc := service.NewInvoiceService(service.InvoiceDeps{
		Invoices: invoiceRepo,
		Files:    privateFiles,
		Renderer: documents,
		Signer:   signer,
		Audit:    userRepo,
		Metrics:  metrics,
	}, cfg.APIPrefix+"/invoices/download", logr)

	var pdfQueue *jobs.Queue
	pdfQueue = jobs.NewQueue("pdf", jobs.QueueConfig{
		Workers:    cfg.Jobs.PDFWorkers,
		MaxRetries: cfg.Jobs.PDFRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		OnResult: func(job jobs.Job, err error) {
			if err != nil {
				logr.Error("pdf job failed", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
			}
			metrics.RecordJob(job.Type, err)
			metrics.SetPendingJobs(pdfQueue.Pending())
		},
	})
	pdfQueue.Register(service.InvoicePDFJob, invoiceSvc.HandleJob)
	pdfQueue.Start(ctx)
	defer pdfQueue.Stop()
	invoiceSvc.UseQueue(pdfQueue)

	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentDeps{
		Formations:  formationRepo,
		Enrollments: enrollmentRepo,
		Invoices:    invoiceRepo,
		Scheduler:   invoiceSvc,
		Audit:       userRepo,
		Tx:          db,
		Cache:       cacheSvc,
	}, logr)
	adminSvc := service.NewAdminService(service.AdminDeps{
		Users:      userRepo,
		Accounts:   authSvc,
		Formations: formationRepo,
		Cascade:    cascadeRepo,
		Audit:      userRepo,
		Tx:         db,
		Files:      publicFiles,
		Cache:      cacheSvc,
	}, validate, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, metrics, logr)

	readiness := []handler.ReadinessCheck{
		{Name: "database", Required: true, Ping: db.PingContext},
		{Name: "cache", Ping: cacheRepo.Ping},
	}
	engine := router.New(router.Options{
		Config:    cfg,
		Logger:    logr,
		Tokens:    authSvc,
		Observer:  metrics,
		Audit:     userRepo,
		StaticDir: cfg.Storage.BaseDir,
	}, router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Users:      handler.NewUserHandler(userSvc),
		Admin:      handler.NewAdminHandler(adminSvc, formationSvc, enrollmentSvc),
		Formations: handler.NewFormationHandler(formationSvc),
		Courses:    handler.NewCourseHandler(courseSvc),
		Lessons:    handler.NewLessonHandler(lessonSvc),
		Quizzes:    handler.NewQuizHandler(quizSvc, gradingSvc),
		Enrollment: handler.NewEnrollmentHandler(enrollmentSvc),
		Invoices:   handler.NewInvoiceHandler(invoiceSvc),
		Analytics:  handler.NewAnalyticsHandler(analyticsSvc),
		Metrics:    handler.NewMetricsHandler(metrics, readiness...),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
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

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

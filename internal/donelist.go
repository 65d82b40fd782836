/*
 *    Copyright 2026 donelist
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package donelist

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.uber.org/zap"

	"donelist.dev/donelist/internal/cache"
	"donelist.dev/donelist/internal/config"
	"donelist.dev/donelist/internal/handler"
	"donelist.dev/donelist/internal/identity"
	"donelist.dev/donelist/internal/objectstore"
	"donelist.dev/donelist/internal/prefs"
	"donelist.dev/donelist/internal/profile"
	"donelist.dev/donelist/internal/repository"
	"donelist.dev/donelist/internal/service"
	"donelist.dev/donelist/internal/session"
)

type App struct {
	logger *zap.Logger
	cfg    *config.Config
	server *http.Server

	mongoClient *mongo.Client
}

func NewApp() *App {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	return &App{
		logger: logger,
		cfg:    cfg,
	}
}

func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tp *sdktrace.TracerProvider
	if a.cfg.OtelExporterEndpoint != "" {
		tp = a.initTracerProvider(ctx)
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				a.logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}

	taskRepo, prefRepo, userRepo, err := a.initRepositories(ctx)
	if err != nil {
		a.logger.Fatal("Failed to initialize repositories", zap.Error(err))
	}
	defer func() {
		taskRepo.Close()
		prefRepo.Close()
		userRepo.Close()
		if a.mongoClient != nil {
			if err := a.mongoClient.Disconnect(context.Background()); err != nil {
				a.logger.Error("Error disconnecting mongo client", zap.Error(err))
			}
		}
	}()

	local, err := a.initLocalCache(ctx)
	if err != nil {
		a.logger.Fatal("Failed to initialize durable cache", zap.Error(err))
	}
	defer local.Close()
	sessionCache := cache.NewMemoryCache()

	objects, err := a.initObjectStore(ctx)
	if err != nil {
		a.logger.Fatal("Failed to initialize object store", zap.Error(err))
	}
	defer objects.Close()

	tracer := otel.Tracer("donelist")

	tokens := identity.NewTokenManager(a.cfg.SecretKey, a.cfg.AccessTokenTTL, a.cfg.RefreshTokenTTL)
	ident := identity.NewService(userRepo, tokens, a.logger)

	reconciler := prefs.NewReconciler(prefRepo, local, sessionCache, tracer, a.logger)
	profileService := profile.NewService(ident, prefRepo, objects, local, sessionCache, tracer, a.logger)
	reminderService := service.NewReminderService(a.cfg.ReminderWebhookURL, tracer, a.logger)

	sessions := session.NewManager(taskRepo, reconciler, reminderService, a.cfg.PrefSaveInterval, a.logger)
	unsubscribe := ident.OnAuthStateChange(sessions.HandleAuthState)
	defer unsubscribe()
	defer sessions.Close()

	handlers := handler.NewHttpHandlers(a.logger, a.cfg, ident, sessions, profileService, tracer)

	router := a.setupRouter(handlers, tp)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		a.logger.Info("Server starting", zap.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal("Could not listen on address", zap.String("address", a.server.Addr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	a.logger.Info("Server shutting down...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := a.server.Shutdown(ctxShutdown); err != nil {
		a.logger.Fatal("Server shutdown failed", zap.Error(err))
	}
	a.logger.Info("Server exited properly")
}

func (a *App) initTracerProvider(ctx context.Context) *sdktrace.TracerProvider {
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(a.cfg.OtelExporterEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		a.logger.Fatal("Failed to create OTLP HTTP trace exporter", zap.Error(err))
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("donelist"),
			semconv.ServiceVersionKey.String(a.cfg.Version),
		),
	)
	if err != nil {
		a.logger.Fatal("Failed to create OpenTelemetry resource", zap.Error(err))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	a.logger.Info("OTLP HTTP trace exporter initialized", zap.String("endpoint", a.cfg.OtelExporterEndpoint))
	return tp
}

func (a *App) initRepositories(ctx context.Context) (repository.TaskRepository, repository.PreferenceRepository, repository.UserRepository, error) {
	switch a.cfg.StorageType {
	case "firestore":
		taskRepo, err := repository.NewFirestoreTaskRepository(ctx, a.cfg.GCPProjectID, a.logger)
		if err != nil {
			return nil, nil, nil, err
		}
		prefRepo, err := repository.NewFirestorePreferenceRepository(ctx, a.cfg.GCPProjectID, a.logger)
		if err != nil {
			return nil, nil, nil, err
		}
		userRepo, err := repository.NewFirestoreUserRepository(ctx, a.cfg.GCPProjectID, a.logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return taskRepo, prefRepo, userRepo, nil
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.cfg.MongoURI))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		a.mongoClient = client
		db := client.Database(a.cfg.MongoDatabase)
		return repository.NewMongoTaskRepository(db, a.logger),
			repository.NewMongoPreferenceRepository(db, a.logger),
			repository.NewMongoUserRepository(db, a.logger),
			nil
	case "inmemory":
		a.logger.Warn("using inmemory repositories. Did you mean to do this?")
		return repository.NewInMemoryTaskRepository(a.logger),
			repository.NewInMemoryPreferenceRepository(a.logger),
			repository.NewInMemoryUserRepository(),
			nil
	default:
		return nil, nil, nil, fmt.Errorf("invalid storage type: %s", a.cfg.StorageType)
	}
}

func (a *App) initLocalCache(ctx context.Context) (cache.Cache, error) {
	if a.cfg.RedisAddr == "" {
		a.logger.Warn("REDIS_ADDR not set, durable cache tier is in-process only")
		return cache.NewMemoryCache(), nil
	}
	return cache.NewRedisCache(ctx, a.cfg.RedisAddr, "donelist", a.logger)
}

func (a *App) initObjectStore(ctx context.Context) (objectstore.Store, error) {
	if a.cfg.GCSBucket == "" {
		a.logger.Warn("GCS_BUCKET not set, uploads are stored in memory")
		return objectstore.NewMemoryStore(), nil
	}
	return objectstore.NewGCSStore(ctx, a.cfg.GCSBucket, a.logger)
}

func (a *App) setupRouter(handlers *handler.HttpHandlers, tp *sdktrace.TracerProvider) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if tp != nil {
		router.Use(otelgin.Middleware("donelist-http", otelgin.WithTracerProvider(tp)))
	}

	handlers.RegisterRoutes(router)

	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/robots.txt", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain")
		c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
	})

	return router
}

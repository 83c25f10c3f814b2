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

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/staffdesk/emis/internal/audit"
	"github.com/staffdesk/emis/internal/cache"
	"github.com/staffdesk/emis/internal/config"
	"github.com/staffdesk/emis/internal/es"
	"github.com/staffdesk/emis/internal/events"
	"github.com/staffdesk/emis/internal/handlers"
	authhdl "github.com/staffdesk/emis/internal/handlers/auth"
	"github.com/staffdesk/emis/internal/httperr"
	"github.com/staffdesk/emis/internal/logging"
	authmw "github.com/staffdesk/emis/internal/middleware/auth"
	"github.com/staffdesk/emis/internal/middleware/ratelimit"
	"github.com/staffdesk/emis/internal/models"
	"github.com/staffdesk/emis/internal/token"
	httpserver "github.com/staffdesk/emis/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	tokens := token.NewService(
		[]byte(configuration.JWT_SECRET),
		[]byte(configuration.REFRESH_SECRET),
		[]byte(configuration.RESET_SECRET),
	)

	var registry token.Registry
	if configuration.REDIS_ADDR != "" {
		redisRegistry, err := token.NewRedisRegistry(configuration.REDIS_ADDR)
		if err != nil {
			log.Fatalf("redis registry: %v", err)
		}
		registry = redisRegistry
		logger.Info("refresh registry", "backend", "redis")
	} else {
		registry = token.NewMemoryRegistry()
		logger.Info("refresh registry", "backend", "memory")
	}

	var producer *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		producer = events.NewProducer([]string{configuration.KAFKA_ADDRESS}, "audit_events")
		defer producer.Close()
	}
	recorder := &audit.Recorder{DB: db, Producer: producer}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init: %v", err)
		}
	}

	generalLimit := ratelimit.New(15*time.Minute, 150)
	generalLimit.SlowDownAfter = 100
	generalLimit.SlowDownStep = 100 * time.Millisecond
	generalLimit.MaxDelay = 2 * time.Second
	authLimit := ratelimit.New(15*time.Minute, 5)

	authenticator := &authmw.Authenticator{DB: db, Tokens: tokens}

	deps := &httpserver.Deps{
		Authenticator: authenticator,
		GeneralLimit:  generalLimit,
		AuthLimit:     authLimit,
		AuthHandler: &authhdl.Handler{
			DB:           db,
			Tokens:       tokens,
			Registry:     registry,
			Audit:        recorder,
			LoginLimiter: authLimit,
			Notifier:     authhdl.LogNotifier{},
		},
		EmployeeHandler: &handlers.EmployeeHandler{
			DB:    db,
			Audit: recorder,
			ES:    esClient,
			Index: configuration.ES_INDEX,
		},
		DepartmentHandler: &handlers.DepartmentHandler{
			DB:    db,
			Audit: recorder,
			Cache: cache.New[[]models.Department](time.Minute),
		},
		CategoryHandler: &handlers.CategoryHandler{
			DB:    db,
			Audit: recorder,
			Cache: cache.New[[]models.FeedbackCategory](time.Minute),
		},
		FeedbackHandler:  &handlers.FeedbackHandler{DB: db},
		LeaveHandler:     &handlers.LeaveHandler{DB: db, Audit: recorder},
		AnalyticsHandler: &handlers.AnalyticsHandler{DB: db},
		LogHandler:       &handlers.LogHandler{DB: db},
		UserHandler:      &handlers.UserHandler{DB: db, Audit: recorder},
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httperr.Handler
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(logging.RequestLogger(logger))

	httpserver.Register(e, deps)

	go func() {
		if err := e.Start(":" + configuration.PORT); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-access-control/internal/admission"
	"github.com/iliyamo/lab-access-control/internal/config"
	"github.com/iliyamo/lab-access-control/internal/customization"
	"github.com/iliyamo/lab-access-control/internal/database"
	"github.com/iliyamo/lab-access-control/internal/handler"
	"github.com/iliyamo/lab-access-control/internal/interlock"
	"github.com/iliyamo/lab-access-control/internal/middleware"
	"github.com/iliyamo/lab-access-control/internal/notification"
	"github.com/iliyamo/lab-access-control/internal/policy"
	"github.com/iliyamo/lab-access-control/internal/queue"
	"github.com/iliyamo/lab-access-control/internal/repository"
	"github.com/iliyamo/lab-access-control/internal/router"
)

func main() {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName,
		cfg.DBMaxConns, time.Duration(cfg.DBConnLifetimeMin)*time.Minute)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting off, customizations from environment")
	}
	custom := customization.NewStore(rdb)

	// Repositories
	users := repository.NewUserRepo(db)
	areas := repository.NewAreaRepo(db)
	tools := repository.NewToolRepo(db)
	resources := repository.NewResourceRepo(db)
	records := repository.NewAccessRecordRepo(db)
	usage := repository.NewUsageEventRepo(db)
	reservations := repository.NewReservationRepo(db)
	interlocks := repository.NewInterlockRepo(db)

	controller := interlock.NewController(
		interlock.DefaultRegistry(),
		interlocks,
		cfg.InterlocksEnabled,
		time.Duration(cfg.InterlockTimeoutSec)*time.Second,
	)

	evaluator := policy.NewEvaluator(custom.Toggles(context.Background()))

	svc := admission.NewService(admission.Config{
		Users:        users,
		Areas:        areas,
		Tools:        tools,
		Resources:    resources,
		Records:      records,
		Usage:        usage,
		Reservations: reservations,
		Interlocks:   interlocks,
		Locker:       controller,
		Notifier:     notification.NewPublisher(),
		Evaluator:    evaluator,
		Toggles:      custom.Toggles,
		DoorOpenFor:  time.Duration(cfg.DoorOpenSec) * time.Second,
	})

	// Background consumer feeding logs/notifications.log.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users), cfg.JWTSecret)
	router.RegisterAccess(e, handler.NewAccessHandler(svc), handler.NewToolHandler(svc), cfg.JWTSecret)
	router.RegisterStaff(e, handler.NewAccessHandler(svc), handler.NewInterlockHandler(svc), handler.NewCustomizationHandler(custom), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, interlocks_enabled=%v)", addr, cfg.Env, cfg.InterlocksEnabled)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

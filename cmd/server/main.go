package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-reservation/internal/config"
	"github.com/iliyamo/ev-charging-reservation/internal/database"
	"github.com/iliyamo/ev-charging-reservation/internal/engine"
	"github.com/iliyamo/ev-charging-reservation/internal/handler"
	"github.com/iliyamo/ev-charging-reservation/internal/middleware"
	"github.com/iliyamo/ev-charging-reservation/internal/queue"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
	"github.com/iliyamo/ev-charging-reservation/internal/router"
	"github.com/iliyamo/ev-charging-reservation/internal/service"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if cfg.Env == "dev" {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer db.Close()

	// Redis backs the rate limiter and the public browse cache.  Both
	// degrade to pass-through when the client is nil.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and caching disabled")
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	stations := repository.NewStationRepo(db)
	ports := repository.NewPortRepo(db)
	slots := repository.NewSlotRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	reservations := repository.NewReservationRepo(db)
	sessions := repository.NewSessionRepo(db)

	// Reservation engine over the transactional store.
	var pub engine.Publisher
	if cfg.RabbitURL != "" {
		pub = service.NewEventPublisher(cfg.RabbitURL, logger)
		go queue.StartReservationConsumer(cfg.RabbitURL, logger)
	}
	store := repository.NewReservationStore(db)
	eng := engine.New(store, cfg.QRSecret, pub, logger)

	// Handlers.
	auth := handler.NewAuthHandler(cfg, users, tokens)
	stationH := handler.NewStationHandler(cfg, stations, ports)
	portH := handler.NewPortHandler(ports)
	slotH := handler.NewSlotHandler(slots)
	vehicleH := handler.NewVehicleHandler(vehicles)
	reservationH := handler.NewReservationHandler(eng, reservations)
	checkinH := handler.NewCheckInHandler(eng)
	sessionH := handler.NewSessionHandler(sessions, vehicles)
	publicH := handler.NewPublicHandler(stations, ports, slots)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterAuth(e, auth, cfg.JWTSecret)
	router.RegisterPublic(e, publicH, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterDriver(e, vehicleH, reservationH, sessionH, cfg.JWTSecret)
	router.RegisterStaff(e, checkinH, reservationH, cfg.JWTSecret)
	router.RegisterAdmin(e, stationH, portH, slotH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/marriage-hall-ledger/internal/clock"
	"github.com/iliyamo/marriage-hall-ledger/internal/config"
	"github.com/iliyamo/marriage-hall-ledger/internal/database"
	"github.com/iliyamo/marriage-hall-ledger/internal/handler"
	"github.com/iliyamo/marriage-hall-ledger/internal/jobs"
	"github.com/iliyamo/marriage-hall-ledger/internal/ledger"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/metrics"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/otp"
	"github.com/iliyamo/marriage-hall-ledger/internal/queue"
	"github.com/iliyamo/marriage-hall-ledger/internal/router"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
	"github.com/iliyamo/marriage-hall-ledger/internal/validation"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	log := logging.NewLoggerWithService("marriage-hall-ledger", cfg.LogLevel)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient() // nil when Redis is down; cache, limiter and OTP degrade
	cacheCfg := config.LoadCacheConfig()

	pub := queue.NewPublisher(cfg.RabbitURL, log, 0)
	go pub.Run(ctx)
	if cfg.RabbitURL != "" {
		go func() {
			if err := queue.StartLedgerConsumer(ctx, cfg.RabbitURL, cfg.LedgerLogPath, log); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("ledger consumer stopped")
			}
		}()
	}

	clk := clock.Real()
	txr := database.NewTxRunner(db, log, 50*time.Millisecond)
	repos := service.NewRepos(db)
	policy := ledger.SubscriptionPolicy{
		BaseAmount:        cfg.Subscription.BaseAmount,
		GSTBasisPoints:    cfg.Subscription.GSTBasisPoints,
		RenewalWindowDays: cfg.Subscription.RenewalWindowDays,
	}

	bookings := service.NewBookingService(txr, repos, pub, clk, log)
	subs := service.NewSubscriptionService(txr, repos, policy, pub, clk, log)
	halls := service.NewHallService(txr, repos, clk, cfg.BcryptCost, cfg.Subscription.TrialMonths, log)
	calendar := service.NewCalendarService(repos, log)

	go jobs.NewExpirySweeper(subs, cfg.Subscription.ExpirySweepInterval, log).Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.EchoValidator{}
	e.Use(echomw.Recover(), echomw.RequestID(), metrics.Middleware())

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, &handler.AuthHandler{
		Cfg:     cfg,
		Users:   repos.Users,
		Tokens:  repos.Tokens,
		Halls:   repos.Halls,
		HallSvc: halls,
		OTP:     otp.NewStore(rdb, cfg.OTPTTL),
		Notify:  pub,
		Log:     log,
	}, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterLedger(e, router.Ledger{
		Halls:     &handler.HallHandler{Halls: repos.Halls, Svc: halls, Log: log},
		Bookings:  &handler.BookingHandler{Bookings: repos.Bookings, Svc: bookings, Log: log},
		Charges:   &handler.ChargeHandler{Charges: repos.Charges, Svc: bookings, Log: log},
		Billings:  &handler.BillingHandler{Billings: repos.Billings, Log: log},
		Cancels:   &handler.CancelHandler{Cancels: repos.Cancels, Svc: bookings, Log: log},
		PeakHours: &handler.PeakHourHandler{PeakHours: repos.PeakHours, Log: log},
		Calendar:  &handler.CalendarHandler{Svc: calendar, Clock: clk, Log: log},
	}, router.Guards{
		JWTSecret:   cfg.JWTSecret,
		OperatorKey: cfg.OperatorKey,
		Active:      middleware.RequireActiveHall(repos.Halls, clk),
		Purge:       middleware.PurgeHallCache(cacheCfg, rdb),
		Cache:       middleware.NewRedisCache(cacheCfg, rdb),
	})
	router.RegisterSubscription(e, &handler.AppPaymentHandler{Payments: repos.Payments, Svc: subs, Log: log}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logging.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

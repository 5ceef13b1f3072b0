package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/vendor-portal/internal/authority"
	"github.com/iliyamo/vendor-portal/internal/config"
	"github.com/iliyamo/vendor-portal/internal/dashboard"
	"github.com/iliyamo/vendor-portal/internal/database"
	"github.com/iliyamo/vendor-portal/internal/handler"
	"github.com/iliyamo/vendor-portal/internal/localstore"
	"github.com/iliyamo/vendor-portal/internal/logger"
	"github.com/iliyamo/vendor-portal/internal/middleware"
	"github.com/iliyamo/vendor-portal/internal/realtime"
	"github.com/iliyamo/vendor-portal/internal/repository"
	"github.com/iliyamo/vendor-portal/internal/router"
	"github.com/iliyamo/vendor-portal/internal/service"
	"github.com/iliyamo/vendor-portal/internal/session"
	"github.com/iliyamo/vendor-portal/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Error("open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		log.Error("migrate database", "error", err)
		os.Exit(1)
	}

	rdb := config.NewRedisClient()
	lsCfg := config.LoadLocalStoreConfig()
	var local localstore.Store
	if rdb != nil {
		defer rdb.Close()
		local = localstore.NewRedis(rdb, lsCfg.Prefix, lsCfg.TTL)
	} else {
		log.Warn("redis unreachable; using in-memory local store and no rate limiting")
		local = localstore.NewMemory(lsCfg.TTL)
	}

	rtCfg := config.LoadRealtimeConfig()
	var hub realtime.Hub = realtime.NewMemoryHub()
	var mailer authority.Mailer
	if rtCfg.Enabled {
		amqpHub, err := realtime.DialAMQP(rtCfg.URL, rtCfg.Exchange, log)
		if err != nil {
			log.Warn("broker unreachable; using in-process change feed", "error", err)
		} else {
			hub = amqpHub
			mailer = &service.MailPublisher{URL: rtCfg.URL, Log: log}
		}
	}
	defer hub.Close()

	auth := authority.New(db, authority.Options{
		Secret:         cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	}, mailer, log)

	reg := session.NewRegistry(session.Config{
		Authority: auth,
		Profiles:  repository.NewProfiles(db),
		Local:     local,
		Logger:    log,
	})
	defer reg.Close()

	dash := dashboard.New(repository.NewDashboardRepo(db), repository.NewStaffRepo(db), repository.NewVendorRepo(db), hub, log)
	portfolio := repository.NewPortfolioRepo(db)
	uploader := storage.NewUploader(storage.Bucket{
		Root:    cfg.StorageDir,
		Name:    storage.PortfolioBucket,
		BaseURL: cfg.PublicBaseURL,
	}, portfolio, log)

	settle := 2 * time.Second
	e := router.New(router.Deps{
		DB:         db,
		Registry:   reg,
		Auth:       handler.NewAuthHandler(reg, auth, settle),
		Portal:     handler.NewPortalHandler(dash),
		Dashboard:  handler.NewDashboardHandler(dash),
		Staff:      handler.NewStaffHandler(dash, uploader, portfolio),
		RateLimit:  middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Settle:     settle,
		StorageDir: filepath.Clean(cfg.StorageDir),
		Log:        log,
	})

	addr := ":" + cfg.Port
	log.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server exited properly")
}

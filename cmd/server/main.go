package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/runclub/internal/bootstrap"
	"anoa.com/runclub/internal/config"
	"anoa.com/runclub/internal/server"
	"anoa.com/runclub/pkg/database"
	"anoa.com/runclub/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log := logger.New(cfg.AppEnv, cfg.LogLevel)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseDSN(), !cfg.IsProduction())
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	if err := bootstrap.Migrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	if err := bootstrap.SeedRoles(db); err != nil {
		log.WithError(err).Fatal("failed to seed roles")
	}
	seed := bootstrap.AdminSeed{
		DisplayName: cfg.AdminDisplayName,
		Phone:       cfg.AdminPhone,
		Password:    cfg.AdminPassword,
	}
	if err := bootstrap.SeedAdminUser(db, seed, log); err != nil {
		log.WithError(err).Fatal("failed to seed admin user")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect redis")
	}
	if redisClient == nil {
		log.Warn("REDIS_URL not set: realtime feed and cooldowns disabled, QR sessions kept in memory")
	} else {
		defer redisClient.Close()
	}

	srv, err := server.NewServer(ctx, cfg, db, redisClient, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build server")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	srv.RunBackground(gctx, g)

	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	log.Info("server stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optionchain-board/config"
	"optionchain-board/controllers"
	"optionchain-board/interfaces"
	"optionchain-board/logger"
	"optionchain-board/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log, err := logger.New(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logger")
	}

	columns, err := services.LoadColumns(cfg.ColumnsFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load column layout")
	}

	var feed interfaces.MarketFeed
	switch cfg.Feed {
	case config.FeedStatic:
		feed = services.NewStaticFeed(cfg.Underlying)
	default:
		feed = services.NewSimulatedFeed(cfg.Underlying, cfg.FeedSeed, cfg.FeedVolatility, log)
	}

	refresher := services.NewChainRefresher(feed, cfg.RefreshInterval, log)
	chainController := controllers.NewChainController(refresher, columns, log)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	chainController.RegisterRoutes(router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refresherDone := make(chan struct{})
	go func() {
		defer close(refresherDone)
		if err := refresher.Run(ctx); err != nil {
			log.WithError(err).Error("Chain refresher exited")
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: router,
	}

	log.WithFields(logrus.Fields{
		"address":    cfg.Address,
		"underlying": cfg.Underlying,
		"feed":       cfg.Feed,
		"interval":   cfg.RefreshInterval.String(),
		"columns":    len(columns),
	}).Info("Starting option chain board")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	<-refresherDone

	log.Info("Option chain board stopped")
}

// requestLogger logs one line per request through logrus
func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request handled")
	}
}

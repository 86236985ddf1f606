package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"marbleous-server/engine"
)

const shutdownTimeout = 10 * time.Second

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	clientDir := flag.String("client", "", "Path to client directory (default: ../client)")
	dbPath := flag.String("db", "marbleous.db", "SQLite database path (empty disables accounts and stats)")
	publicURL := flag.String("public-url", "", "Base URL used in invite links (default: derived from request)")
	dev := flag.Bool("dev", false, "Human-readable debug logging")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if *clientDir == "" {
		exe, _ := os.Executable()
		*clientDir = filepath.Join(filepath.Dir(exe), "..", "client")
		// Fallback for development
		if _, err := os.Stat(*clientDir); os.IsNotExist(err) {
			*clientDir = "../client"
		}
		if _, err := os.Stat(*clientDir); os.IsNotExist(err) {
			*clientDir = ""
		}
	}

	var db *DB
	var analytics *Analytics
	if *dbPath != "" {
		db, err = OpenDB(*dbPath, logger)
		if err != nil {
			logger.Fatal("open database", zap.String("path", *dbPath), zap.Error(err))
		}
		analytics = NewAnalytics(db, logger)
	}

	hub := NewHub(engine.DefaultConfig(), db, analytics, logger)
	go hub.Run()

	mux := SetupRoutes(hub, ServerOptions{ClientDir: *clientDir, PublicURL: *publicURL})

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		logger.Info("server starting",
			zap.String("addr", *addr),
			zap.String("client", *clientDir),
			zap.Bool("persistence", db != nil))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	hub.rooms.Shutdown()
	if analytics != nil {
		analytics.Stop()
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Warn("close database", zap.Error(err))
		}
	}
}

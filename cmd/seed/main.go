// Package main is the entry point for the catalog seeder. It upserts the
// deterministic demo catalog and the default ranking settings into Postgres.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/onnwee/courserank/internal/config"
	"github.com/onnwee/courserank/internal/course"
	"github.com/onnwee/courserank/internal/middleware"
	"github.com/onnwee/courserank/internal/seed"
	"github.com/onnwee/courserank/internal/settings"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("CourseRank Seeder")
		fmt.Println()
		fmt.Println("Usage: seed [options]")
		fmt.Println()
		fmt.Println("Requires DATABASE_URL. Safe to run repeatedly.")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	env := config.DefaultEnv
	if cfg != nil {
		env = cfg.Env
	}
	logger := middleware.NewLogger(env)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("failed to connect to database", "database_url", cfg.LogSummary()["database_url"], "error", err)
		os.Exit(1)
	}

	courses := course.NewPostgresRepository(db, cfg.PromotionMaxRetries, logger)
	store := settings.NewPostgresRepository(db)

	if _, err := seed.Load(ctx, courses, store, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/randomtoy/hex-backend/internal/config"
	"github.com/randomtoy/hex-backend/internal/db"
	"github.com/randomtoy/hex-backend/internal/logger"
)

// Usage: migrate [-config path] [up|down|status|version|redo|reset] [args...]
func main() {
	path := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	flag.Parse()

	cfg := config.MustLoad(*path)
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	cmd := "up"
	var args []string
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
		args = flag.Args()[1:]
	}

	conn, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		log.Fatal("ping db", zap.Error(err))
	}
	if err := db.Migrate(ctx, conn, cmd, args...); err != nil {
		log.Fatal("migrate", zap.String("command", cmd), zap.Error(err))
	}
	log.Info("migrations applied", zap.String("command", cmd))
}

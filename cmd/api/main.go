package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/randomtoy/hex-backend/internal/adapters/ai"
	"github.com/randomtoy/hex-backend/internal/adapters/memory"
	pgstore "github.com/randomtoy/hex-backend/internal/adapters/postgres"
	redisstore "github.com/randomtoy/hex-backend/internal/adapters/redis"
	"github.com/randomtoy/hex-backend/internal/config"
	"github.com/randomtoy/hex-backend/internal/logger"
	"github.com/randomtoy/hex-backend/internal/ports"
	"github.com/randomtoy/hex-backend/internal/session"
	transporthttp "github.com/randomtoy/hex-backend/internal/transport/http"
	"github.com/randomtoy/hex-backend/internal/transport/ws"
	"github.com/randomtoy/hex-backend/internal/usecase"
)

func main() {
	path := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	flag.Parse()

	cfg := config.MustLoad(*path)

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return err
		}
		log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	var store ports.GameStore
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := connectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		log.Info("connected to database")
		store = pgstore.New(pool)
	case config.StoreRedis:
		store = redisstore.NewStore(rdb)
	default:
		store = memory.New()
	}

	var rl ports.RateLimiter
	switch {
	case cfg.RateLimit.Limit <= 0:
		rl = memory.AlwaysAllow{}
	case rdb != nil:
		rl = redisstore.NewRateLimiter(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window, log)
	default:
		rl = memory.NewRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	seed := cfg.AI.BotSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sources := map[ports.SeatKind]ports.AIMoveSource{
		ports.SeatLocalBot: ai.NewRandomBot(seed),
	}
	if cfg.AI.URL != "" {
		sources[ports.SeatRemoteAI] = ai.NewClient(cfg.AI.URL, &http.Client{Timeout: cfg.AI.Timeout}, log)
	}

	hub := ws.NewHub(log)

	// Hosted games outlive the signal context so that Flush can still save.
	regCtx, regCancel := context.WithCancel(context.Background())
	defer regCancel()
	reg := session.NewRegistry(regCtx, session.Deps{
		Store:       store,
		Broadcaster: hub,
		AI:          sources,
		Log:         log,
	}, session.Options{
		SaveTimeout:   cfg.Session.SaveTimeout,
		AITimeout:     cfg.AI.Timeout,
		MaxAIFailures: cfg.AI.MaxFailures,
		UndoPolicy:    session.UndoPolicy(cfg.Session.UndoElapsedPolicy),
	})

	n, err := reg.ResumeActive(ctx)
	if err != nil {
		return err
	}
	log.Info("resumed active games", zap.Int("count", n))

	h := transporthttp.NewHandlers(
		usecase.NewGameCreator(reg, rl, cfg.MaxBoardSize),
		usecase.NewGameGetter(reg, rl),
		usecase.NewMoveSubmitter(reg, rl),
		usecase.NewGameActions(reg, rl),
		hub,
	)
	e := transporthttp.New(h, cfg.AllowedOrigins)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return usecase.NewSweeper(reg, cfg.Session.SweepInterval, log).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", zap.Error(err))
		}
		if err := reg.Flush(shutdownCtx); err != nil {
			log.Error("flush games", zap.Error(err))
		}
		reg.Close()
		return nil
	})

	return g.Wait()
}

func connectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connCtx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

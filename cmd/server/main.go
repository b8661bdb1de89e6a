// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tbu5358/risko-realtime/internal/auth"
	"github.com/tbu5358/risko-realtime/internal/config"
	"github.com/tbu5358/risko-realtime/internal/database"
	"github.com/tbu5358/risko-realtime/internal/handlers"
	"github.com/tbu5358/risko-realtime/internal/middleware"
	"github.com/tbu5358/risko-realtime/internal/settlement"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg := config.Load()

	// Settlement plumbing is optional; without Redis the arena still runs
	// and the notifier degrades to logging unpaid results.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		var err error
		rdb, err = settlement.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatalf("redis connect: %v", err)
		}
		logger.Infof("settlement queue enabled, queue=%s", cfg.SettlementQueue)
	} else {
		logger.Warn("REDIS_ADDR unset, settlement publishing disabled")
	}
	settler := settlement.NewNotifier(rdb, settlementPool(logger, cfg.PostgresURL), cfg.SettlementQueue, logger)

	srv := handlers.NewServer(cfg, settler, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.LogMiddleware(logger))
	r.Use(chimiddleware.Heartbeat("/healthz"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: func() []string {
			if os.Getenv("ARENA_ENV") == "production" {
				return strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",")
			}
			return []string{"https://*", "http://*"}
		}(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/lobby/ws", handlers.LobbyWSHandler(srv))
	r.Get("/match/ws/{match_id}", handlers.MatchWSHandler(srv))
	r.Get("/match/{match_id}/qr", handlers.MatchQRHandler(srv))

	logger.Infof("arena listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func settlementPool(logger *logrus.Logger, connStr string) *pgxpool.Pool {
	if connStr == "" {
		logger.Warn("DATABASE_URL unset, result persistence disabled")
		return nil
	}
	pool, err := database.Connect(context.Background(), connStr)
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	return pool
}

// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/warhall/internal/activity"
	"github.com/jason-s-yu/warhall/internal/auth"
	"github.com/jason-s-yu/warhall/internal/handlers"
	"github.com/jason-s-yu/warhall/internal/maps"
	"github.com/jason-s-yu/warhall/internal/middleware"
	"github.com/jason-s-yu/warhall/internal/registry"
	"github.com/jason-s-yu/warhall/internal/transport"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	mapProvider := newMapProvider(logger)
	act := newActivityRegistry(logger)

	bus := transport.NewBus()
	reg := registry.New(logger, bus, act, mapProvider, &registry.LocalLoader{})

	mux := http.NewServeMux()

	// session + lobby endpoints
	mux.Handle("/session", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.SessionHandler(),
	)))
	mux.Handle("/lobbies", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListLobbiesHandler(reg),
	)))

	// lobby ws
	mux.Handle("/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.LobbyWSHandler(logger, reg),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// newMapProvider connects to Postgres when DATABASE_URL is set, otherwise
// falls back to a built-in catalog for local development.
func newMapProvider(logger *logrus.Logger) maps.Provider {
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		provider, err := maps.Connect(context.Background(), connString)
		if err != nil {
			log.Fatalf("failed to connect to map database: %v", err)
		}
		logger.Info("using postgres map provider")
		return provider
	}
	logger.Info("DATABASE_URL not set, using built-in map catalog")
	return maps.NewStaticProvider(
		maps.MapInfo{ID: "lost-temple", Name: "Lost Temple", Hash: "1e3f", NumSlots: 4},
		maps.MapInfo{ID: "big-game-hunters", Name: "Big Game Hunters", Hash: "8ab2", NumSlots: 8},
		maps.MapInfo{ID: "hunters-duo", Name: "Hunters Duo", Hash: "55c1", NumSlots: 2},
	)
}

// newActivityRegistry uses Redis when REDIS_ADDR is set so multiple server
// instances share the one-lobby-per-player constraint.
func newActivityRegistry(logger *logrus.Logger) activity.Registry {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Info("REDIS_ADDR not set, using in-memory activity registry")
		return activity.NewMemoryRegistry()
	}
	db := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("invalid REDIS_DB %q: %v", raw, err)
		}
		db = parsed
	}
	rdb, err := activity.ConnectRedis(addr, db)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	logger.Infof("using redis activity registry at %s", addr)
	return activity.NewRedisRegistry(rdb, logger)
}

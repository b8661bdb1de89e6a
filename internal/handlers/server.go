// internal/handlers/server.go
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/tbu5358/risko-realtime/internal/config"
	"github.com/tbu5358/risko-realtime/internal/lobby"
	"github.com/tbu5358/risko-realtime/internal/registry"
	"github.com/tbu5358/risko-realtime/internal/rules"
	"github.com/tbu5358/risko-realtime/internal/session"
)

// Server owns the process-wide coordinator state: the connection registry,
// the lobby manager, and the session store. Constructed once at startup
// and injected into the transport handlers; no module-level socket caches.
type Server struct {
	Registry *registry.Registry
	Manager  *lobby.Manager
	Logger   *logrus.Logger
}

// NewServer wires the coordinator. settler may be nil in development.
func NewServer(cfg *config.Config, settler lobby.Settler, logger *logrus.Logger) *Server {
	reg := registry.New(logger)
	sessions := session.NewStore()
	oracles := map[string]rules.Oracle{
		lobby.GameSpeedChess:  rules.NewChessOracle(),
		lobby.GameSnakeRoyale: rules.NewRelayOracle(),
	}
	manager := lobby.NewManager(reg, sessions, oracles, cfg, cfg.GracePeriod, settler, logger)

	srv := &Server{
		Registry: reg,
		Manager:  manager,
		Logger:   logger,
	}

	// A failed transport write is an implicit disconnect: the registry has
	// already dropped the handle, and match-scoped drops feed the owning
	// session's disconnect transition. Lobby-scope drops need no more than
	// the fan-out removal that already happened.
	reg.OnDrop = func(identity string, scope registry.Scope) {
		matchID, ok := registry.ParseMatchScope(scope)
		if !ok {
			return
		}
		if sess, found := sessions.Get(matchID); found {
			sess.Disconnect(identity)
		}
	}
	return srv
}

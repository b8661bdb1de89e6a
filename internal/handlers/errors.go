// internal/handlers/errors.go
package handlers

import (
	"errors"

	"github.com/tbu5358/risko-realtime/internal/lobby"
	"github.com/tbu5358/risko-realtime/internal/session"
)

// errorCode maps an internal error to its wire-level taxonomy code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, lobby.ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, lobby.ErrNotFound):
		return "NotFound"
	case errors.Is(err, lobby.ErrForbidden):
		return "Forbidden"
	case errors.Is(err, lobby.ErrSelfJoin):
		return "SelfJoin"
	case errors.Is(err, session.ErrNotYourTurn):
		return "NotYourTurn"
	case errors.Is(err, session.ErrIllegalMove):
		return "IllegalMove"
	case errors.Is(err, session.ErrGameOver):
		return "GameOver"
	case errors.Is(err, session.ErrNotActive):
		return "NotActive"
	case errors.Is(err, session.ErrNotSeated):
		return "Forbidden"
	default:
		return "Internal"
	}
}

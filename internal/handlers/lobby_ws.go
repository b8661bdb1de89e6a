// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tbu5358/risko-realtime/internal/auth"
	"github.com/tbu5358/risko-realtime/internal/lobby"
	"github.com/tbu5358/risko-realtime/internal/protocol"
	"github.com/tbu5358/risko-realtime/internal/registry"
)

// LobbyWSHandler serves the directory-browsing WebSocket. One connection
// per client; the connection enters the lobby scope on join-lobby-manager
// and from then on receives every directory change push-style.
func LobbyWSHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby"},
			OriginPatterns: []string{"*"}, // tightened via reverse proxy in production
		})
		if err != nil {
			srv.Logger.Warnf("lobby ws accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "lobby" {
			c.Close(websocket.StatusCode(BadSubprotocolError), "client must speak the lobby subprotocol")
			return
		}

		// Bad tokens are refused; missing ones fall back to a guest.
		ident, err := auth.Identify(r)
		if err != nil {
			c.Close(websocket.StatusCode(InvalidAuthTokenError), "authentication failed")
			return
		}

		handle := registry.NewHandle(r.Context(), ident.ID, registry.WSConn{C: c}, srv.Logger)
		defer func() {
			srv.Registry.Unregister(handle)
			handle.Close(websocket.StatusNormalClosure, "bye")
		}()

		srv.Logger.Infof("lobby: %s connected from %s", ident.ID, r.RemoteAddr)
		srv.readLobbyLoop(r.Context(), c, handle, ident)
	}
}

func (srv *Server) readLobbyLoop(ctx context.Context, c *websocket.Conn, handle *registry.Handle, ident auth.Identity) {
	joined := false
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			srv.Logger.Debugf("lobby: %s read error: %v", ident.ID, err)
			return
		}

		var msg protocol.LobbyMessage
		if err := protocol.Decode(data, &msg); err != nil {
			handle.Send(protocol.LobbyError("InvalidInput", "malformed message"))
			continue
		}

		switch msg.Type {
		case protocol.MsgJoinLobbyManager:
			// Guests pick their display name on entry. Authenticated
			// users keep the name from their token.
			if ident.Guest && strings.TrimSpace(msg.Username) != "" {
				ident.Name = strings.TrimSpace(msg.Username)
			}
			srv.Registry.Register(ident.ID, registry.ScopeLobby, handle)
			joined = true
			srv.Manager.RefreshMatches(ident.ID)

		case protocol.MsgCreateMatch:
			if !joined {
				handle.Send(protocol.LobbyError("Forbidden", "join the lobby first"))
				continue
			}
			if _, err := srv.Manager.CreateMatch(ident.ID, ident.Name, msg.Game, msg.Wager, msg.TimePerSide); err != nil {
				handle.Send(protocol.LobbyError(errorCode(err), err.Error()))
			}

		case protocol.MsgJoinMatch:
			if !joined {
				handle.Send(protocol.LobbyError("Forbidden", "join the lobby first"))
				continue
			}
			matchID, err := srv.resolveMatchRef(msg)
			if err != nil {
				handle.Send(protocol.LobbyError(errorCode(err), err.Error()))
				continue
			}
			if _, err := srv.Manager.JoinMatch(matchID, ident.ID, ident.Name); err != nil {
				handle.Send(protocol.LobbyError(errorCode(err), err.Error()))
			}

		case protocol.MsgCancelMatch:
			if !joined {
				handle.Send(protocol.LobbyError("Forbidden", "join the lobby first"))
				continue
			}
			matchID, err := uuid.Parse(msg.MatchID)
			if err != nil {
				handle.Send(protocol.LobbyError("InvalidInput", "bad match id"))
				continue
			}
			if err := srv.Manager.CancelMatch(matchID, ident.ID); err != nil {
				handle.Send(protocol.LobbyError(errorCode(err), err.Error()))
			}

		case protocol.MsgRefreshMatches:
			if !joined {
				handle.Send(protocol.LobbyError("Forbidden", "join the lobby first"))
				continue
			}
			srv.Manager.RefreshMatches(ident.ID)

		default:
			handle.Send(protocol.LobbyError("InvalidInput", "unknown message type: "+msg.Type))
		}
	}
}

// resolveMatchRef accepts either a match UUID or a short join code.
func (srv *Server) resolveMatchRef(msg protocol.LobbyMessage) (uuid.UUID, error) {
	if code := strings.TrimSpace(msg.JoinCode); code != "" {
		matchID, ok := srv.Manager.ResolveCode(code)
		if !ok {
			return uuid.Nil, fmt.Errorf("%w: unknown join code", lobby.ErrNotFound)
		}
		return matchID, nil
	}
	matchID, err := uuid.Parse(msg.MatchID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad match id", lobby.ErrInvalidInput)
	}
	return matchID, nil
}

// internal/handlers/match_ws.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tbu5358/risko-realtime/internal/auth"
	"github.com/tbu5358/risko-realtime/internal/protocol"
	"github.com/tbu5358/risko-realtime/internal/registry"
	"github.com/tbu5358/risko-realtime/internal/rules"
	"github.com/tbu5358/risko-realtime/internal/session"
)

// MatchWSHandler serves the in-game WebSocket for a single match. Only the
// two seated players may attach; everything the client sends is either a
// move proposal or a social action, and everything the server sends is a
// session event fanned out through the registry.
func MatchWSHandler(srv *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			srv.Logger.Warnf("match ws accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "game" {
			c.Close(websocket.StatusCode(BadSubprotocolError), "client must speak the game subprotocol")
			return
		}

		matchID, err := uuid.Parse(chi.URLParam(r, "match_id"))
		if err != nil {
			c.Close(websocket.StatusCode(InvalidMatchIDError), "invalid match id")
			return
		}
		sess, ok := srv.Manager.Sessions().Get(matchID)
		if !ok {
			c.Close(websocket.StatusCode(InvalidMatchIDError), "match not found")
			return
		}

		ident, err := auth.Identify(r)
		if err != nil {
			c.Close(websocket.StatusCode(InvalidAuthTokenError), "authentication failed")
			return
		}
		if !sess.Seated(ident.ID) {
			c.Close(websocket.StatusCode(NotAParticipantError), "identity is not seated in this match")
			return
		}

		handle := registry.NewHandle(r.Context(), ident.ID, registry.WSConn{C: c}, srv.Logger)
		srv.Registry.Register(ident.ID, sess.Scope(), handle)
		defer func() {
			// A reconnect replaces this handle in the registry before this
			// handler unwinds; only the still-registered handle's exit
			// means the player actually left.
			stillOwned := srv.Registry.Unregister(handle)
			handle.Close(websocket.StatusNormalClosure, "bye")
			if stillOwned {
				sess.Disconnect(ident.ID)
			}
		}()

		if err := sess.PlayerConnected(ident.ID); err != nil {
			srv.Logger.Warnf("match %s: connect %s: %v", matchID, ident.ID, err)
			return
		}

		srv.Logger.Infof("match %s: %s attached from %s", matchID, ident.ID, r.RemoteAddr)
		srv.readMatchLoop(r, c, sess, handle, ident)
	}
}

func (srv *Server) readMatchLoop(r *http.Request, c *websocket.Conn, sess *session.Session, handle *registry.Handle, ident auth.Identity) {
	ctx := r.Context()
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			srv.Logger.Debugf("match: %s read error: %v", ident.ID, err)
			return
		}

		var msg protocol.MatchMessage
		if err := protocol.Decode(data, &msg); err != nil {
			handle.Send(protocol.MatchError("InvalidInput", "malformed message"))
			continue
		}

		switch msg.Type {
		case protocol.MsgJoin:
			// Resync request: replay the full snapshot to this seat only.
			if snap, err := sess.Snapshot(ident.ID); err == nil {
				handle.Send(snap)
			}

		case protocol.MsgMove:
			mv := rules.Move{
				From:      msg.From,
				To:        msg.To,
				Promotion: msg.Promotion,
				Data:      msg.Data,
			}
			if err := sess.ApplyMove(ident.ID, mv); err != nil {
				handle.Send(protocol.MatchError(errorCode(err), err.Error()))
			}

		case protocol.MsgResign:
			if err := sess.Resign(ident.ID); err != nil {
				handle.Send(protocol.MatchError(errorCode(err), err.Error()))
			}

		case protocol.MsgDraw:
			if err := sess.OfferDraw(ident.ID); err != nil {
				handle.Send(protocol.MatchError(errorCode(err), err.Error()))
			}

		case protocol.MsgChat:
			if strings.TrimSpace(msg.Message) == "" {
				continue
			}
			sess.Chat(ident.ID, msg.Message)

		case protocol.MsgRematchRequest:
			sess.RematchRequest(ident.ID)

		case protocol.MsgRematchAccept:
			sess.RematchAccept(ident.ID)

		case protocol.MsgRematchDeny:
			sess.RematchDeny(ident.ID)

		default:
			handle.Send(protocol.MatchError("InvalidInput", "unknown message type: "+msg.Type))
		}
	}
}

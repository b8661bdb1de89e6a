// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the lobby and match handlers.
const (
	BadSubprotocolError   = 3000 // client connected with an unsupported subprotocol
	InvalidAuthTokenError = 3001 // auth token was invalid or expired
	NotAParticipantError  = 3002 // authenticated identity is not seated in the target match
	InvalidMatchIDError   = 3003 // target match ID does not exist or is malformed
)

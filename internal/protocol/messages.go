// internal/protocol/messages.go
package protocol

// Message types: client -> server, lobby-directory scope.
const (
	MsgJoinLobbyManager = "join-lobby-manager"
	MsgCreateMatch      = "create-match"
	MsgJoinMatch        = "join-match"
	MsgCancelMatch      = "cancel-match"
	MsgRefreshMatches   = "refresh-matches"
)

// Message types: server -> client, lobby-directory scope.
const (
	MsgLobbyMatchesUpdate = "lobby-matches-update"
	MsgMatchCreated       = "match-created"
	MsgMatchJoined        = "match-joined"
	MsgMatchRemoved       = "match-removed"
	MsgLobbyError         = "lobby-error"
)

// Message types: client -> server, match scope.
const (
	MsgJoin           = "join"
	MsgMove           = "move"
	MsgResign         = "resign"
	MsgDraw           = "draw"
	MsgChat           = "chat"
	MsgRematchRequest = "rematch-request"
	MsgRematchAccept  = "rematch-accept"
	MsgRematchDeny    = "rematch-deny"
)

// Message types: server -> client, match scope.
const (
	MsgGameState            = "game_state"
	MsgMoveRelay            = "move"
	MsgChatRelay            = "chat"
	MsgDrawOffer            = "draw-offer"
	MsgOpponentDisconnected = "opponent-disconnected"
	MsgOpponentReconnected  = "opponent-reconnected"
	MsgGameEnd              = "game_end"
	MsgRematchStart         = "rematch-start"
	MsgError                = "error"
)

// LobbyMessage is the decoded form of every lobby-scope client frame.
// Unused fields stay zero for types that don't carry them.
type LobbyMessage struct {
	Type        string  `json:"type"`
	Username    string  `json:"username,omitempty"`
	MatchID     string  `json:"matchId,omitempty"`
	JoinCode    string  `json:"joinCode,omitempty"`
	Game        string  `json:"game,omitempty"`
	Wager       float64 `json:"wager,omitempty"`
	TimePerSide int     `json:"timePerSide,omitempty"`
}

// MatchMessage is the decoded form of every match-scope client frame.
type MatchMessage struct {
	Type      string                 `json:"type"`
	Username  string                 `json:"username,omitempty"`
	From      string                 `json:"from,omitempty"`
	To        string                 `json:"to,omitempty"`
	Promotion string                 `json:"promotion,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ErrorEvent is sent to the offending connection only; it never fans out.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// LobbyError builds a lobby-scope error event.
func LobbyError(code, message string) ErrorEvent {
	return ErrorEvent{Type: MsgLobbyError, Code: code, Message: message}
}

// MatchError builds a match-scope error event.
func MatchError(code, message string) ErrorEvent {
	return ErrorEvent{Type: MsgError, Code: code, Message: message}
}

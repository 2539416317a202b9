/*
Package play contains the real-time session coordinator: client connections,
the presence registry, challenge negotiation, the live game table, and the
connection-lifecycle manager.

This file defines the wire surface: the JSON envelope exchanged over a
WebSocket connection and the payload shapes of every client event.
*/
package play

import "encoding/json"

// Client -> server events.
const (
	EventRegisterUser     = "register-user"
	EventSendChallenge    = "send-challenge"
	EventAcceptChallenge  = "accept-challenge"
	EventDeclineChallenge = "decline-challenge"
	EventJoinGame         = "join-game"
	EventPlayTile         = "play-tile"
	EventDrawTile         = "draw-tile"
	EventPassTurn         = "pass-turn"
	EventEndGame          = "end-game"
	EventLeaveGame        = "leave-game"
)

// Server -> client events.
const (
	EventChallengeReceived    = "challenge-received"
	EventChallengeDeclined    = "challenge-declined"
	EventChallengeError       = "challenge-error"
	EventGameStart            = "game-start"
	EventGameState            = "game-state"
	EventOpponentPlayed       = "opponent-played"
	EventOpponentDrew         = "opponent-drew"
	EventOpponentPassed       = "opponent-passed"
	EventOpponentDisconnected = "opponent-disconnected"
	EventGameEnded            = "game-ended"
	EventGameError            = "game-error"
	EventDrawResult           = "draw-result"
	EventUserOnline           = "user-online"
	EventUserOffline          = "user-offline"
	EventUserBusy             = "user-busy"
	EventUserAvailable        = "user-available"
)

// Envelope is the JSON frame exchanged in both directions:
// {"event": <name>, "payload": {...}}.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload carries a coded error in game-error/challenge-error events.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RegisterUserPayload binds the connection to a user identity.
type RegisterUserPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// SendChallengePayload offers a challenge to another online user.
type SendChallengePayload struct {
	ChallengerID          string `json:"challengerId"`
	ChallengerName        string `json:"challengerName"`
	ChallengerDisplayName string `json:"challengerDisplayName"`
	TargetID              string `json:"targetId"`
	TargetName            string `json:"targetName"`
}

// ChallengeRefPayload references a pending challenge (accept/decline).
type ChallengeRefPayload struct {
	ChallengeID string `json:"challengeId"`
}

// JoinGamePayload binds the connection to a game for reconnection tracking.
type JoinGamePayload struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// InboundTile identifies the tile a client wants to play.
type InboundTile struct {
	ID string `json:"id"`
}

// PlayTilePayload requests a tile placement. BoardPosition is accepted for
// wire compatibility but ignored: legality and orientation are computed
// server-side.
type PlayTilePayload struct {
	GameID        string      `json:"gameId"`
	Tile          InboundTile `json:"tile"`
	Side          string      `json:"side"`
	BoardPosition *int        `json:"boardPosition,omitempty"`
}

// DrawTilePayload requests a draw from the pile.
type DrawTilePayload struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// PassTurnPayload passes the turn.
type PassTurnPayload struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// EndGamePayload reports a voluntary game end with a winner.
type EndGamePayload struct {
	GameID   string `json:"gameId"`
	WinnerID string `json:"winnerId"`
}

// LeaveGamePayload forfeits the game voluntarily.
type LeaveGamePayload struct {
	GameID string `json:"gameId"`
}

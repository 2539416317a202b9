/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
within the coordinator and in the payloads of game-error/challenge-error events
sent to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005

	// ErrInvalidEventPayload indicates that a WebSocket event carried a malformed payload.
	ErrInvalidEventPayload = 1006
)

// 2xxx: Presence and Challenge Errors
const (
	// ErrUserNotRegistered indicates the connection issued a game event before register-user.
	ErrUserNotRegistered = 2101

	// ErrTargetUnreachable indicates the challenge target has no live connection.
	ErrTargetUnreachable = 2102

	// ErrChallengeNotFound indicates the challenge was already consumed, declined, or expired.
	ErrChallengeNotFound = 2103

	// ErrGameNotFound indicates the referenced game id has no live session.
	ErrGameNotFound = 2201

	// ErrNotInGame indicates the acting user is not one of the game's two players.
	ErrNotInGame = 2202
)

// 3xxx: Game Validation Errors (reported to the actor only, never mutate state)
const (
	// ErrNotYourTurn indicates the acting player does not hold the current turn.
	ErrNotYourTurn = 3001

	// ErrTileNotInHand indicates the played tile id is not in the acting player's hand.
	ErrTileNotInHand = 3002

	// ErrIllegalPlacement indicates neither pip of the tile matches the chosen side's open end.
	ErrIllegalPlacement = 3003

	// ErrEmptyPile indicates a draw was attempted with zero tiles left in the pile.
	ErrEmptyPile = 3004

	// ErrMustDrawFirst indicates a pass was attempted while the pile still holds tiles.
	ErrMustDrawFirst = 3005

	// ErrGameAlreadyOver indicates an action on a completed or abandoned game.
	ErrGameAlreadyOver = 3006

	// ErrSessionReplaced indicates the connection was closed because the same user
	// registered again on a new connection.
	ErrSessionReplaced = 3101
)

// 4xxx: Persistence Errors (retryable; in-memory state is left untouched)
const (
	// ErrPersistenceUnavailable indicates the durable store rejected or timed out on a write.
	ErrPersistenceUnavailable = 4001
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrUnauthorized indicates a protected HTTP endpoint was called without a valid identity.
	ErrUnauthorized = 5001
)

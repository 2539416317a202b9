/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, WebSocket error events, and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrInvalidEventPayload:  {Code: ErrInvalidEventPayload, Message: "Malformed event payload."},

	// 2xxx: Presence and Challenge Errors
	ErrUserNotRegistered: {Code: ErrUserNotRegistered, Message: "Register before playing."},
	ErrTargetUnreachable: {Code: ErrTargetUnreachable, Message: "That player is not online."},
	ErrChallengeNotFound: {Code: ErrChallengeNotFound, Message: "Challenge no longer exists."},
	ErrGameNotFound:      {Code: ErrGameNotFound, Message: "Game not found.", Status: http.StatusNotFound},
	ErrNotInGame:         {Code: ErrNotInGame, Message: "You are not part of this game."},

	// 3xxx: Game Validation Errors
	ErrNotYourTurn:      {Code: ErrNotYourTurn, Message: "It is not your turn."},
	ErrTileNotInHand:    {Code: ErrTileNotInHand, Message: "That tile is not in your hand."},
	ErrIllegalPlacement: {Code: ErrIllegalPlacement, Message: "The tile does not match that end of the chain."},
	ErrEmptyPile:        {Code: ErrEmptyPile, Message: "The pile is empty. Pass instead."},
	ErrMustDrawFirst:    {Code: ErrMustDrawFirst, Message: "Draw a tile before passing."},
	ErrGameAlreadyOver:  {Code: ErrGameAlreadyOver, Message: "The game is already over."},
	ErrSessionReplaced:  {Code: ErrSessionReplaced, Message: "You connected from another device."},

	// 4xxx: Persistence Errors
	ErrPersistenceUnavailable: {Code: ErrPersistenceUnavailable, Message: "Could not save the move. Please try again.", Status: http.StatusServiceUnavailable},

	// 5xxx: Internal System Errors
	ErrUnknown:      {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrUnauthorized: {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
}

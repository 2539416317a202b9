/*
Package user contains the core data structure for player identity.

It defines the basic representation of a user within the coordinator (the User
struct), owned by the auth collaborator and treated as immutable here. It is
used for passing identity both internally and to clients.
*/
package user

// User represents the basic identity information of a player.
// Fields use JSON tags for serialization in WebSocket messages.
type User struct {
	// ID is the opaque unique identifier for the user, issued by the auth collaborator.
	ID string `json:"id"`

	// Username is the user's unique handle.
	Username string `json:"username"`

	// DisplayName is the name shown to other players.
	DisplayName string `json:"displayName,omitempty"`
}

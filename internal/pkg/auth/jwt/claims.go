package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims issued by the
// auth collaborator and consumed by this coordinator. It includes standard claims
// required by the JWT specification and the custom identity claims needed to bind
// a connection to a user.
type Payload struct {
	// StandardClaims embeds the JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer), required for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the opaque user identifier this token authenticates.
	ID string `json:"id"`

	// Username is the user's unique handle.
	Username string `json:"username"`

	// DisplayName is the user's presentation name.
	DisplayName string `json:"display_name"`
}

/*
Package handler provides the HTTP handlers and routing setup for the Dominet server.

This file contains the guest-identity endpoint. The coordinator has no account
system; a client obtains an identity token here and presents it on the
WebSocket upgrade so register-user is pinned to the issued identity.
*/
package handler

import (
	"net/http"
	"strings"

	"dominet/internal/app/user"
	"dominet/internal/pkg/auth/jwt"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/logx"
	"dominet/internal/pkg/randx"
	"dominet/internal/pkg/req"
	"dominet/internal/pkg/resp"
)

// maxNameLength bounds usernames and display names.
const maxNameLength = 32

// GuestRequest is the body of POST /api/auth/guest.
type GuestRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// GuestResponse carries the issued identity and its signed token.
type GuestResponse struct {
	User  user.User `json:"user"`
	Token string    `json:"token"`
}

// HandleGuest issues a signed identity token for a freshly minted guest user.
func HandleGuest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body GuestRequest
		if cerr := req.BindJSON(r, &body); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		username := strings.TrimSpace(body.Username)
		displayName := strings.TrimSpace(body.DisplayName)
		if username == "" || len(username) > maxNameLength || len(displayName) > maxNameLength {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		if displayName == "" {
			displayName = username
		}

		guest := user.User{
			ID:          randx.NewID().String(),
			Username:    username,
			DisplayName: displayName,
		}

		token, err := jwt.GenerateToken(&jwt.Payload{
			ID:          guest.ID,
			Username:    guest.Username,
			DisplayName: guest.DisplayName,
		}, deps.Config.JWTSecret, jwt.IdentityExpiration)
		if err != nil {
			logx.Error(err, "Failed to sign guest token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, GuestResponse{User: guest, Token: token})
	}
}

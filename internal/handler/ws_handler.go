/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
optional identity-token extraction, upgrading the HTTP connection to WebSocket, and
initiating the client lifecycle.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"dominet/internal/app/play"
	"dominet/internal/pkg/auth/jwt"
	"dominet/internal/pkg/errs"
	"dominet/internal/pkg/limiter"
	"dominet/internal/pkg/logx"
	"dominet/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// A client may present an identity token via the ?token= query parameter; a valid
// token pins the identity that register-user must later match. Connections
// without a token are anonymous until register-user.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			rateLimitErr := errs.NewError(errs.ErrRateLimitExceeded)
			resp.RespondError(w, r, rateLimitErr)
			return
		}

		var claims *jwt.Payload
		if tokenString := r.URL.Query().Get("token"); tokenString != "" {
			claims, err = jwt.ParseToken(tokenString, deps.Config.JWTSecret)
			if err != nil {
				logx.Warn("Invalid identity token on WebSocket upgrade, treating as anonymous", "error", err)
				claims = nil
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := play.NewClient(deps.Coordinator, conn, claims)

		go client.WritePump()

		logx.Info("WebSocket connection established", "remote_addr", conn.RemoteAddr().String())

		client.ReadPump()
	}
}

// internal/handlers/http.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jason-s-yu/warhall/internal/auth"
	"github.com/jason-s-yu/warhall/internal/registry"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// SessionHandler issues an ephemeral identity. Clients POST a display name
// and get an auth_token cookie back; no account is persisted.
func SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad session request payload", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		identity := auth.Identity{UserID: uuid.New(), UserName: req.Name}
		token, err := auth.CreateJWT(identity)
		if err != nil {
			http.Error(w, "failed to create session token", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    token,
			HttpOnly: true,
			Path:     "/",
		})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"userId": identity.UserID.String(),
			"name":   identity.UserName,
		})
	}
}

// ListLobbiesHandler returns the current joinable lobbies for debugging and
// for clients that poll instead of subscribing over the websocket.
func ListLobbiesHandler(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie := r.Header.Get("Cookie")
		if !strings.Contains(cookie, "auth_token=") {
			http.Error(w, "missing auth_token", http.StatusUnauthorized)
			return
		}
		if _, err := auth.AuthenticateJWT(extractCookieToken(cookie, "auth_token")); err != nil {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reg.ListLobbies())
	}
}

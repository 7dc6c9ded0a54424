package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	roleClient  = "client"
	roleStylist = "stylist"
	roleAdmin   = "admin"
)

// actor is the authenticated caller as forwarded by the gateway.
type actor struct {
	UserID    string
	StylistID string
	Role      string
}

func actorFrom(r *http.Request) actor {
	return actor{
		UserID:    strings.TrimSpace(r.Header.Get("X-User-Id")),
		StylistID: strings.TrimSpace(r.Header.Get("X-Stylist-Id")),
		Role:      strings.TrimSpace(r.Header.Get("X-Role")),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// internal/maps/maps.go
package maps

import (
	"context"

	"github.com/google/uuid"
)

// MapInfo is an immutable snapshot of a map's lobby-relevant metadata.
// Lobbies copy it at creation time; later catalog edits never affect a
// running lobby.
type MapInfo struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Hash     string  `json:"hash"`
	NumSlots int     `json:"numSlots"`
	Forces   []Force `json:"forces,omitempty"`
}

// Force is one pre-set team from the map's scenario data. Only maps played
// with pre-set slots ("use map settings") carry forces.
type Force struct {
	Name    string        `json:"name"`
	TeamID  int           `json:"teamId"`
	Players []ForcePlayer `json:"players"`
}

// ForcePlayer is one pre-set seat inside a force. ID is the stable seat
// index assigned by the map editor.
type ForcePlayer struct {
	ID       int    `json:"id"`
	Race     string `json:"race"`
	Computer bool   `json:"computer"`
}

// Provider resolves map metadata for lobby creation. Implementations must
// be safe for concurrent use.
type Provider interface {
	GetMapInfo(ctx context.Context, mapIDs []string, requesterID uuid.UUID) ([]MapInfo, error)
}

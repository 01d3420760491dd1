// internal/wire/messages.go
//
// Message shapes published over the lobby pub/sub paths. Every message is
// discriminated by its Type field; lobby-list messages use Action instead
// ("add", "update", "delete").
package wire

import (
	"github.com/google/uuid"

	"github.com/jason-s-yu/warhall/internal/lobby"
)

const (
	MsgInit            = "init"
	MsgStatus          = "status"
	MsgChat            = "chat"
	MsgDiff            = "diff"
	MsgStartCountdown  = "startCountdown"
	MsgCancelCountdown = "cancelCountdown"
	MsgSetupGame       = "setupGame"
	MsgSetRoutes       = "setRoutes"
	MsgCancelLoading   = "cancelLoading"
	MsgGameStarted     = "gameStarted"
	MsgAllowStart      = "allowStart"
	MsgLeave           = "leave"
	MsgError           = "error"
)

// Init carries the full lobby snapshot a client receives on subscription.
type Init struct {
	Type  string       `json:"type"`
	Lobby *lobby.Lobby `json:"lobby"`
}

// Status is a per-user summary published on the user's lobby status path.
type Status struct {
	Type  string        `json:"type"`
	Lobby *LobbySummary `json:"lobby,omitempty"`
}

// Chat relays one lobby chat line.
type Chat struct {
	Type string    `json:"type"`
	From string    `json:"from"`
	User uuid.UUID `json:"userId"`
	Text string    `json:"text"`
	Time int64     `json:"time"`
}

// Diff carries the ordered diff events between two lobby snapshots.
type Diff struct {
	Type       string            `json:"type"`
	DiffEvents []lobby.DiffEvent `json:"diffEvents"`
}

// StartCountdown announces the pre-game countdown to the whole lobby.
type StartCountdown struct {
	Type    string `json:"type"`
	Seconds int    `json:"seconds"`
}

// CancelCountdown announces a countdown rollback.
type CancelCountdown struct {
	Type string `json:"type"`
}

// GameSetup is the per-match descriptor produced by the game loader.
type GameSetup struct {
	GameID string `json:"gameId"`
	Seed   int64  `json:"seed"`
}

// SetupGame delivers a player's personal game descriptor on their private
// per-connection path once routing succeeds.
type SetupGame struct {
	Type       string    `json:"type"`
	Setup      GameSetup `json:"setup"`
	ResultCode string    `json:"resultCode"`
}

// RouteInfo describes one established network route for a player.
type RouteInfo struct {
	For     string `json:"for"`
	Server  string `json:"server"`
	RouteID string `json:"routeId"`
}

// SetRoutes delivers a player's network routes on their private path.
type SetRoutes struct {
	Type   string      `json:"type"`
	Routes []RouteInfo `json:"routes"`
	GameID string      `json:"gameId"`
}

// CancelLoading announces a load-phase rollback.
type CancelLoading struct {
	Type string `json:"type"`
}

// GameStarted announces that the external loader finished successfully.
type GameStarted struct {
	Type string `json:"type"`
}

// AllowStart releases clients into the match after the post-countdown grace.
type AllowStart struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
}

// Leave is sent on a user's private path when they are removed.
type Leave struct {
	Type string    `json:"type"`
	User uuid.UUID `json:"userId"`
}

// LobbySummary is the public list entry for one lobby.
type LobbySummary struct {
	Name       string         `json:"name"`
	MapName    string         `json:"mapName"`
	GameType   lobby.GameType `json:"gameType"`
	HostName   string         `json:"hostName"`
	OpenSlots  int            `json:"openSlots"`
	TotalSlots int            `json:"totalSlots"`
}

// ListUpdate is one change to the public lobby list.
type ListUpdate struct {
	Action  string        `json:"action"` // add, update, delete
	Payload *LobbySummary `json:"payload,omitempty"`
	Name    string        `json:"name,omitempty"` // delete carries only the key
}

// ListSnapshot is the initial message a fresh lobby-list subscriber gets.
type ListSnapshot struct {
	Action  string         `json:"action"` // always "snapshot"
	Payload []LobbySummary `json:"payload"`
}

// ErrorMessage reports a failed command back to one connection.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// internal/handlers/commands.go
package handlers

import (
	"context"
	"encoding/json"

	"github.com/jason-s-yu/warhall/internal/lobby"
	"github.com/jason-s-yu/warhall/internal/registry"
	"github.com/jason-s-yu/warhall/internal/wire"
)

// commandHandler executes one decoded client command against the registry.
type commandHandler func(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error

// commandTable maps the "type" field of incoming packets to handlers. Each
// handler decodes and validates its own payload before touching the registry.
var commandTable = map[string]commandHandler{
	"createLobby":     handleCreateLobby,
	"join":            handleJoin,
	"leave":           handleLeave,
	"addComputer":     handleAddComputer,
	"changeSlot":      handleChangeSlot,
	"setRace":         handleSetRace,
	"openSlot":        handleOpenSlot,
	"closeSlot":       handleCloseSlot,
	"kickPlayer":      handleKick,
	"banPlayer":       handleBan,
	"makeObserver":    handleMakeObserver,
	"removeObserver":  handleRemoveObserver,
	"chat":            handleChat,
	"startCountdown":  handleStartCountdown,
	"subscribeList":   handleSubscribeList,
	"unsubscribeList": handleUnsubscribeList,
}

type coords struct {
	TeamIndex int `json:"teamIndex"`
	SlotIndex int `json:"slotIndex"`
}

func decode(payload json.RawMessage, into interface{}) error {
	if err := json.Unmarshal(payload, into); err != nil {
		return wire.BadRequestf("malformed payload: %v", err)
	}
	return nil
}

func handleCreateLobby(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var req registry.CreateLobbyRequest
	if err := decode(payload, &req); err != nil {
		return err
	}
	return reg.CreateLobby(context.Background(), s, req)
}

func handleJoin(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var req struct {
		Name string     `json:"name"`
		Race lobby.Race `json:"race"`
	}
	if err := decode(payload, &req); err != nil {
		return err
	}
	if req.Race == "" {
		req.Race = lobby.RaceRandom
	}
	return reg.JoinLobby(s, req.Name, req.Race)
}

func handleLeave(reg *registry.Registry, s *registry.Session, _ json.RawMessage) error {
	return reg.LeaveLobby(s)
}

func handleAddComputer(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var c coords
	if err := decode(payload, &c); err != nil {
		return err
	}
	return reg.AddComputer(s, c.TeamIndex, c.SlotIndex)
}

func handleChangeSlot(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var c coords
	if err := decode(payload, &c); err != nil {
		return err
	}
	return reg.ChangeSlot(s, c.TeamIndex, c.SlotIndex)
}

func handleSetRace(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var req struct {
		coords
		Race lobby.Race `json:"race"`
	}
	if err := decode(payload, &req); err != nil {
		return err
	}
	return reg.SetRace(s, req.TeamIndex, req.SlotIndex, req.Race)
}

func handleOpenSlot(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var c coords
	if err := decode(payload, &c); err != nil {
		return err
	}
	return reg.OpenSlot(s, c.TeamIndex, c.SlotIndex)
}

func handleCloseSlot(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var c coords
	if err := decode(payload, &c); err != nil {
		return err
	}
	return reg.CloseSlot(s, c.TeamIndex, c.SlotIndex)
}

func handleKick(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var c coords
	if err := decode(payload, &c); err != nil {
		return err
	}
	return reg.KickPlayer(s, c.TeamIndex, c.SlotIndex)
}

func handleBan(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var c coords
	if err := decode(payload, &c); err != nil {
		return err
	}
	return reg.BanPlayer(s, c.TeamIndex, c.SlotIndex)
}

func handleMakeObserver(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var c coords
	if err := decode(payload, &c); err != nil {
		return err
	}
	return reg.MakeObserver(s, c.TeamIndex, c.SlotIndex)
}

func handleRemoveObserver(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var req struct {
		SlotIndex int `json:"slotIndex"`
	}
	if err := decode(payload, &req); err != nil {
		return err
	}
	return reg.RemoveObserver(s, req.SlotIndex)
}

func handleChat(reg *registry.Registry, s *registry.Session, payload json.RawMessage) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := decode(payload, &req); err != nil {
		return err
	}
	return reg.SendChat(s, req.Text)
}

func handleStartCountdown(reg *registry.Registry, s *registry.Session, _ json.RawMessage) error {
	return reg.StartCountdown(s)
}

func handleSubscribeList(reg *registry.Registry, s *registry.Session, _ json.RawMessage) error {
	reg.SubscribeList(s.Conn)
	return nil
}

func handleUnsubscribeList(reg *registry.Registry, s *registry.Session, _ json.RawMessage) error {
	return reg.UnsubscribeList(s.Conn)
}

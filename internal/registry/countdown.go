// internal/registry/countdown.go
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/warhall/internal/lobby"
	"github.com/jason-s-yu/warhall/internal/wire"
)

// countdown is the ephemeral record of one lobby's countdown + load
// handshake. It exists only between StartCountdown and cancellation or
// completion, and is owned exclusively by the registry.
type countdown struct {
	cancelCh chan struct{}
	once     sync.Once
	gameID   string // set by onGameSetup, guarded by Registry.mu
}

func newCountdown() *countdown {
	return &countdown{cancelCh: make(chan struct{})}
}

// cancel is idempotent; cancelling a settled countdown is a no-op.
func (c *countdown) cancel() {
	c.once.Do(func() { close(c.cancelCh) })
}

// StartCountdown begins the transition from forming lobby to active game:
// a fixed 5s timer runs while the external loader boots the match, and the
// lobby leaves the public list. Host only; the lobby must have at least two
// opposing sides and must not already be in a transient state.
func (r *Registry) StartCountdown(s *Session) error {
	if err := authorize(s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.clients[s.ClientID]
	if !ok {
		return wire.BadRequestf("must be in a lobby")
	}
	l := r.lobbies[name]
	if err := r.requireHost(l, s); err != nil {
		return err
	}
	if r.transient(name) {
		return wire.Conflictf("lobby is already starting a game")
	}
	if !l.HasOpposingSides() {
		return wire.BadRequestf("must have at least 2 opposing sides")
	}

	cd := newCountdown()
	r.countdowns[name] = cd
	r.bus.Publish(LobbyPath(name), &wire.StartCountdown{
		Type:    wire.MsgStartCountdown,
		Seconds: int(r.CountdownTime / time.Second),
	})
	r.bus.Publish(ListPath, &wire.ListUpdate{Action: "delete", Name: name})

	req := r.loadRequest(name, l, cd)
	done := r.loader.LoadGame(context.Background(), req)
	go r.runHandshake(name, cd, done)
	r.log.Infof("lobby %q counting down", name)
	return nil
}

// loadRequest derives the loader input from the current snapshot: the human
// roster plus per-team {name, race, isComputer} lists of occupiable slots.
func (r *Registry) loadRequest(name string, l *lobby.Lobby, cd *countdown) *LoadRequest {
	var players []string
	var config [][]GamePlayer
	for _, t := range l.Teams {
		if t.IsObserver {
			continue
		}
		var team []GamePlayer
		for _, s := range t.Slots {
			switch s.Type {
			case lobby.TypeHuman:
				players = append(players, s.Name)
				team = append(team, GamePlayer{Name: s.Name, Race: s.Race})
			case lobby.TypeComputer, lobby.TypeUmsComputer:
				team = append(team, GamePlayer{Name: s.Name, Race: s.Race, IsComputer: true})
			}
		}
		config = append(config, team)
	}
	return &LoadRequest{
		LobbyName:   name,
		MapID:       l.Map.ID,
		GameType:    l.GameType,
		GameSubType: l.GameSubType,
		Players:     players,
		GameConfig:  config,
		OnGameSetup: func(setup wire.GameSetup, codes map[string]string) {
			r.onGameSetup(name, cd, setup, codes)
		},
		OnRoutesSet: func(playerName string, routes []wire.RouteInfo, gameID string) {
			r.onRoutesSet(name, cd, playerName, routes, gameID)
		},
	}
}

// runHandshake waits for both the countdown timer and the loader, then for
// the allow-start grace period, before finalizing the game. Loader failures
// are swallowed here by design: callers observe them as republished lobby
// state, not as an error on the StartCountdown call.
func (r *Registry) runHandshake(name string, cd *countdown, loadDone <-chan error) {
	timer := time.NewTimer(r.CountdownTime)
	defer timer.Stop()
	select {
	case <-cd.cancelCh:
		return
	case <-timer.C:
	}

	select {
	case <-cd.cancelCh:
		return
	case err := <-loadDone:
		if err != nil {
			r.mu.Lock()
			if r.countdowns[name] == cd {
				r.log.Warnf("lobby %q game load failed: %v", name, err)
				r.maybeCancelCountdown(name)
			}
			r.mu.Unlock()
			return
		}
	}

	r.mu.Lock()
	if r.countdowns[name] != cd {
		r.mu.Unlock()
		return
	}
	gameID := cd.gameID
	r.bus.Publish(LobbyPath(name), &wire.GameStarted{Type: wire.MsgGameStarted})
	r.mu.Unlock()

	// Grace period so clients can bring up their loading screens before the
	// match is released.
	grace := time.NewTimer(r.AllowStartTime)
	defer grace.Stop()
	select {
	case <-cd.cancelCh:
		return
	case <-grace.C:
	}
	r.finalize(name, cd, gameID)
}

// onGameSetup marks the lobby loading and hands every human their personal
// game descriptor on their private channel (never broadcast).
func (r *Registry) onGameSetup(name string, cd *countdown, setup wire.GameSetup, codes map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countdowns[name] != cd {
		return
	}
	r.loading[name] = true
	cd.gameID = setup.GameID
	for _, member := range r.members[name] {
		r.bus.Publish(ClientPath(name, member.UserID, member.ClientID), &wire.SetupGame{
			Type:       wire.MsgSetupGame,
			Setup:      setup,
			ResultCode: codes[member.UserName],
		})
	}
	r.log.Infof("lobby %q loading game %s", name, setup.GameID)
}

// onRoutesSet relays one player's network routes to their private channel.
func (r *Registry) onRoutesSet(name string, cd *countdown, playerName string, routes []wire.RouteInfo, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countdowns[name] != cd {
		return
	}
	for _, member := range r.members[name] {
		if member.UserName == playerName {
			r.bus.Publish(ClientPath(name, member.UserID, member.ClientID), &wire.SetRoutes{
				Type:   wire.MsgSetRoutes,
				Routes: routes,
				GameID: gameID,
			})
			return
		}
	}
}

// maybeCancelCountdown rolls a lobby back from any transient state and
// returns it to the public list. Idempotent; a no-op for forming lobbies.
// Caller holds r.mu.
func (r *Registry) maybeCancelCountdown(name string) {
	cd := r.countdowns[name]
	if cd != nil {
		cd.cancel()
		delete(r.countdowns, name)
		r.bus.Publish(LobbyPath(name), &wire.CancelCountdown{Type: wire.MsgCancelCountdown})
	}
	if r.loading[name] {
		delete(r.loading, name)
		r.bus.Publish(LobbyPath(name), &wire.CancelLoading{Type: wire.MsgCancelLoading})
	}
	if cd != nil {
		if l, ok := r.lobbies[name]; ok {
			r.publishList("add", l)
			r.log.Infof("lobby %q countdown cancelled", name)
		}
	}
}

// finalize releases the match and destroys the lobby: once a game is live
// the lobby, its subscriptions, and its activity claims all cease to exist.
func (r *Registry) finalize(name string, cd *countdown, gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countdowns[name] != cd {
		return
	}
	r.bus.Publish(LobbyPath(name), &wire.AllowStart{Type: wire.MsgAllowStart, GameID: gameID})
	delete(r.countdowns, name)
	delete(r.loading, name)
	r.log.Infof("lobby %q game %s started", name, gameID)
	r.destroyLobby(name)
}

// internal/registry/countdown_test.go
package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/warhall/internal/lobby"
	"github.com/jason-s-yu/warhall/internal/wire"
)

func hasMsg[T any](b *fakeBus, path string) bool {
	for _, msg := range b.msgsOn(path) {
		if _, ok := msg.(T); ok {
			return true
		}
	}
	return false
}

func lastMsg[T any](b *fakeBus, path string) (T, bool) {
	var found T
	ok := false
	for _, msg := range b.msgsOn(path) {
		if m, is := msg.(T); is {
			found, ok = m, true
		}
	}
	return found, ok
}

// startableLobby builds a two-sided lobby ready to count down.
func startableLobby(t *testing.T, r *Registry) (*Session, *Session) {
	t.Helper()
	alice := newTestSession("alice")
	bob := newTestSession("bob")
	createLobby(t, r, alice, "game1", "lost-temple")
	require.NoError(t, r.JoinLobby(bob, "game1", lobby.RaceZerg))
	return alice, bob
}

func TestStartCountdownRequiresOpposingSides(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	alice := newTestSession("alice")
	createLobby(t, r, alice, "game1", "lost-temple")

	err := r.StartCountdown(alice)
	assert.Equal(t, wire.CodeBadRequest, wire.CodeOf(err))

	// A failed start leaves no transient state behind.
	assert.NoError(t, r.AddComputer(alice, 0, 1))
	assert.NoError(t, r.StartCountdown(alice))
}

func TestStartCountdownIsHostOnly(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	_, bob := startableLobby(t, r)

	err := r.StartCountdown(bob)
	assert.Equal(t, wire.CodeUnauthorized, wire.CodeOf(err))
}

func TestCountdownFreezesLobby(t *testing.T) {
	r, bus, _ := newTestRegistry(t)
	r.CountdownTime = time.Hour // never fires inside the test
	alice, bob := startableLobby(t, r)

	require.NoError(t, r.StartCountdown(alice))

	sc, ok := lastMsg[*wire.StartCountdown](bus, LobbyPath("game1"))
	require.True(t, ok)
	assert.Equal(t, 3600, sc.Seconds)
	actions := bus.listActions()
	assert.Equal(t, "delete", actions[len(actions)-1], "counting lobbies leave the public list")
	assert.Empty(t, r.ListLobbies())

	err := r.StartCountdown(alice)
	assert.Equal(t, wire.CodeConflict, wire.CodeOf(err))
	err = r.AddComputer(alice, 0, 2)
	assert.Equal(t, wire.CodeConflict, wire.CodeOf(err))
	err = r.JoinLobby(newTestSession("carol"), "game1", lobby.RaceZerg)
	assert.Equal(t, wire.CodeConflict, wire.CodeOf(err))

	// Race picks stay legal until the load phase begins.
	ti, si, found := mustFind(t, r, "game1", bob.UserID)
	require.True(t, found)
	assert.NoError(t, r.SetRace(bob, ti, si, lobby.RaceProtoss))
}

func TestLeaveDuringCountdownRollsBack(t *testing.T) {
	r, bus, _ := newTestRegistry(t)
	r.CountdownTime = time.Hour
	alice, bob := startableLobby(t, r)
	require.NoError(t, r.StartCountdown(alice))

	require.NoError(t, r.LeaveLobby(bob))

	assert.True(t, hasMsg[*wire.CancelCountdown](bus, LobbyPath("game1")))
	// The rollback re-adds the lobby before the departure's own list update.
	actions := bus.listActions()
	require.GreaterOrEqual(t, len(actions), 2)
	assert.Equal(t, "add", actions[len(actions)-2], "a cancelled lobby returns to the list")
	assert.Equal(t, "update", actions[len(actions)-1])

	// The lobby is mutable again.
	assert.NoError(t, r.AddComputer(alice, 0, 2))
	assert.Len(t, r.ListLobbies(), 1)
}

func TestHandshakeDeliversSetupAndReleasesGame(t *testing.T) {
	r, bus, loader := newTestRegistry(t)
	r.CountdownTime = 5 * time.Millisecond
	r.AllowStartTime = 5 * time.Millisecond
	alice, bob := startableLobby(t, r)

	require.NoError(t, r.StartCountdown(alice))
	req := loader.request()
	require.NotNil(t, req)
	assert.Equal(t, "game1", req.LobbyName)
	assert.Equal(t, []string{"alice", "bob"}, req.Players)
	require.Len(t, req.GameConfig, 1)
	assert.Len(t, req.GameConfig[0], 2)

	req.OnGameSetup(wire.GameSetup{GameID: "g-42", Seed: 7},
		map[string]string{"alice": "a1", "bob": "b2"})

	setup, ok := lastMsg[*wire.SetupGame](bus, ClientPath("game1", alice.UserID, alice.ClientID))
	require.True(t, ok, "setup goes to each member's private path")
	assert.Equal(t, "g-42", setup.Setup.GameID)
	assert.Equal(t, "a1", setup.ResultCode)
	setup, ok = lastMsg[*wire.SetupGame](bus, ClientPath("game1", bob.UserID, bob.ClientID))
	require.True(t, ok)
	assert.Equal(t, "b2", setup.ResultCode)

	req.OnRoutesSet("bob", []wire.RouteInfo{{For: "bob", Server: "10.0.0.1"}}, "g-42")
	routes, ok := lastMsg[*wire.SetRoutes](bus, ClientPath("game1", bob.UserID, bob.ClientID))
	require.True(t, ok)
	assert.Equal(t, "g-42", routes.GameID)

	loader.finish(nil)

	require.Eventually(t, func() bool {
		return hasMsg[*wire.AllowStart](bus, LobbyPath("game1"))
	}, time.Second, time.Millisecond)
	allow, _ := lastMsg[*wire.AllowStart](bus, LobbyPath("game1"))
	assert.Equal(t, "g-42", allow.GameID)
	assert.True(t, hasMsg[*wire.GameStarted](bus, LobbyPath("game1")))

	require.Eventually(t, func() bool {
		_, ok := r.GetLobby("game1")
		return !ok
	}, time.Second, time.Millisecond, "a started lobby is destroyed")
}

func TestLoadFailureRollsBackSilently(t *testing.T) {
	r, bus, loader := newTestRegistry(t)
	r.CountdownTime = 5 * time.Millisecond
	alice, _ := startableLobby(t, r)

	require.NoError(t, r.StartCountdown(alice))
	loader.finish(errors.New("routing blew up"))

	require.Eventually(t, func() bool {
		return hasMsg[*wire.CancelCountdown](bus, LobbyPath("game1"))
	}, time.Second, time.Millisecond)

	_, ok := r.GetLobby("game1")
	assert.True(t, ok, "the lobby survives a failed load")
	require.Eventually(t, func() bool {
		return r.AddComputer(alice, 0, 2) == nil
	}, time.Second, time.Millisecond, "the lobby thaws after rollback")
	actions := bus.listActions()
	assert.Equal(t, "add", actions[len(actions)-2], "republished before the computer update")
}

func TestSetRaceRejectedWhileLoading(t *testing.T) {
	r, _, loader := newTestRegistry(t)
	r.CountdownTime = time.Hour
	alice, bob := startableLobby(t, r)
	require.NoError(t, r.StartCountdown(alice))

	loader.request().OnGameSetup(wire.GameSetup{GameID: "g-1"}, nil)

	ti, si, _ := mustFind(t, r, "game1", bob.UserID)
	err := r.SetRace(bob, ti, si, lobby.RaceProtoss)
	assert.Equal(t, wire.CodeConflict, wire.CodeOf(err))
}

func TestCancelledCountdownNeverFinalizes(t *testing.T) {
	r, bus, loader := newTestRegistry(t)
	r.CountdownTime = 20 * time.Millisecond
	alice, bob := startableLobby(t, r)
	require.NoError(t, r.StartCountdown(alice))

	// Cancel before the timer fires; a late loader success must not revive it.
	require.NoError(t, r.LeaveLobby(bob))
	loader.finish(nil)

	time.Sleep(60 * time.Millisecond)
	assert.False(t, hasMsg[*wire.GameStarted](bus, LobbyPath("game1")))
	_, ok := r.GetLobby("game1")
	assert.True(t, ok)
}

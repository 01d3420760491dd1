// internal/registry/loader.go
package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/jason-s-yu/warhall/internal/lobby"
	"github.com/jason-s-yu/warhall/internal/wire"
)

// GamePlayer is one seat in the derived game configuration handed to the
// loader: per-team lists of {name, race, isComputer}.
type GamePlayer struct {
	Name       string     `json:"name"`
	Race       lobby.Race `json:"race"`
	IsComputer bool       `json:"isComputer"`
}

// LoadRequest asks the external game-setup service to boot a match.
// OnGameSetup fires once routing/setup succeeds (at most once); OnRoutesSet
// fires per player as their network routes come up. Both may be called from
// the loader's own goroutines.
type LoadRequest struct {
	LobbyName   string
	MapID       string
	GameType    lobby.GameType
	GameSubType int
	Players     []string // human roster, team-then-slot order
	GameConfig  [][]GamePlayer

	OnGameSetup func(setup wire.GameSetup, resultCodes map[string]string)
	OnRoutesSet func(playerName string, routes []wire.RouteInfo, gameID string)
}

// GameLoader is the external game-setup/transport-routing service. LoadGame
// returns immediately; the returned channel delivers the overall outcome
// exactly once and must be buffered so the loader never blocks on it.
type GameLoader interface {
	LoadGame(ctx context.Context, req *LoadRequest) <-chan error
}

// LocalLoader fakes the game-setup service inside the process: instant
// setup, loopback routes. Useful for development and single-host play.
type LocalLoader struct{}

func (LocalLoader) LoadGame(ctx context.Context, req *LoadRequest) <-chan error {
	done := make(chan error, 1)
	go func() {
		gameID := uuid.NewString()
		codes := make(map[string]string, len(req.Players))
		for _, name := range req.Players {
			codes[name] = "ok"
		}
		if req.OnGameSetup != nil {
			req.OnGameSetup(wire.GameSetup{GameID: gameID, Seed: int64(uuid.New().ID())}, codes)
		}
		if req.OnRoutesSet != nil {
			for _, name := range req.Players {
				req.OnRoutesSet(name, []wire.RouteInfo{{
					For:     name,
					Server:  "127.0.0.1",
					RouteID: uuid.NewString(),
				}}, gameID)
			}
		}
		done <- nil
	}()
	return done
}

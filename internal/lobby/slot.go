// internal/lobby/slot.go
package lobby

import "github.com/google/uuid"

// Race is a player's selected (or map-forced) race.
type Race string

const (
	RaceZerg    Race = "zerg"
	RaceTerran  Race = "terran"
	RaceProtoss Race = "protoss"
	RaceRandom  Race = "random"
)

// SlotType describes what currently occupies one seat in a team.
type SlotType string

const (
	TypeOpen     SlotType = "open"
	TypeClosed   SlotType = "closed"
	TypeHuman    SlotType = "human"
	TypeComputer SlotType = "computer"
	TypeObserver SlotType = "observer"

	// Pre-set-slots (UMS) variants. Controlled slots belong to a force whose
	// first human player decides whether they are open or closed.
	TypeControlledOpen   SlotType = "controlledOpen"
	TypeControlledClosed SlotType = "controlledClosed"
	TypeUmsComputer      SlotType = "umsComputer"
)

// Slot is one seat in a team. Slots are immutable values: every mutation
// helper returns a fresh copy. The ID survives in-place changes (race
// selection, open/controlled conversions) but a new ID is issued whenever
// the slot's logical identity changes, e.g. a human leaving turns the seat
// into a brand-new open slot.
type Slot struct {
	ID            uuid.UUID `json:"id"`
	Type          SlotType  `json:"type"`
	Name          string    `json:"name"`
	UserID        uuid.UUID `json:"userId"`
	Race          Race      `json:"race"`
	HasForcedRace bool      `json:"hasForcedRace"`
	ControlledBy  uuid.UUID `json:"controlledBy"`
	PlayerID      int       `json:"playerId"`
}

// NewOpenSlot returns a joinable empty seat.
func NewOpenSlot() Slot {
	return Slot{ID: uuid.New(), Type: TypeOpen, Name: "Open", Race: RaceRandom}
}

// NewClosedSlot returns an empty seat that cannot be joined until reopened.
func NewClosedSlot() Slot {
	return Slot{ID: uuid.New(), Type: TypeClosed, Name: "Closed", Race: RaceRandom}
}

// NewHuman returns a seat occupied by a connected player.
func NewHuman(name string, userID uuid.UUID, race Race) Slot {
	if race == "" {
		race = RaceRandom
	}
	return Slot{ID: uuid.New(), Type: TypeHuman, Name: name, UserID: userID, Race: race}
}

// NewComputer returns an AI-occupied seat.
func NewComputer(race Race) Slot {
	if race == "" {
		race = RaceRandom
	}
	return Slot{ID: uuid.New(), Type: TypeComputer, Name: "Computer", Race: race}
}

// NewObserver returns a watching (non-playing) human seat.
func NewObserver(name string, userID uuid.UUID) Slot {
	return Slot{ID: uuid.New(), Type: TypeObserver, Name: name, UserID: userID}
}

// NewUmsComputer returns a scenario-fixed AI seat for pre-set-slots maps.
func NewUmsComputer(race Race, playerID int) Slot {
	return Slot{
		ID:            uuid.New(),
		Type:          TypeUmsComputer,
		Name:          "Computer",
		Race:          race,
		HasForcedRace: true,
		PlayerID:      playerID,
	}
}

// NewControlledOpen returns an open seat owned by another slot's human.
func NewControlledOpen(race Race, controlledBy uuid.UUID, playerID int) Slot {
	return Slot{
		ID:            uuid.New(),
		Type:          TypeControlledOpen,
		Name:          "Open",
		Race:          race,
		HasForcedRace: true,
		ControlledBy:  controlledBy,
		PlayerID:      playerID,
	}
}

// NewControlledClosed returns a closed seat owned by another slot's human.
func NewControlledClosed(controlledBy uuid.UUID, playerID int) Slot {
	return Slot{
		ID:            uuid.New(),
		Type:          TypeControlledClosed,
		Name:          "Closed",
		Race:          RaceRandom,
		HasForcedRace: true,
		ControlledBy:  controlledBy,
		PlayerID:      playerID,
	}
}

// Occupied reports whether a player (human or AI) or observer holds the seat.
func (s Slot) Occupied() bool {
	switch s.Type {
	case TypeHuman, TypeComputer, TypeObserver, TypeUmsComputer:
		return true
	}
	return false
}

// player seats count toward opposing sides; observers do not.
func (s Slot) isPlayer() bool {
	switch s.Type {
	case TypeHuman, TypeComputer, TypeUmsComputer:
		return true
	}
	return false
}

// OpenForJoin reports whether a new player may take the seat.
func (s Slot) OpenForJoin() bool {
	return s.Type == TypeOpen || s.Type == TypeControlledOpen
}

// CanHoldRace reports whether the seat's race is player-selectable at all.
func (s Slot) CanHoldRace() bool {
	return s.Type == TypeHuman || s.Type == TypeComputer
}

// internal/lobby/lobby.go
package lobby

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jason-s-yu/warhall/internal/maps"
)

// GameType selects the team layout and joining rules of a lobby.
type GameType string

const (
	GameMelee      GameType = "melee"
	GameFFA        GameType = "ffa"
	GameOneVOne    GameType = "oneVOne"
	GameUms        GameType = "ums"
	GameTeamMelee  GameType = "teamMelee"
	GameTeamFFA    GameType = "teamFfa"
	GameTopVBottom GameType = "topVBottom"
)

func (t GameType) teamBased() bool {
	return t == GameTeamMelee || t == GameTeamFFA || t == GameTopVBottom
}

var (
	ErrBadGameSubType = errors.New("game sub-type out of range for game type")
	ErrBadCoordinates = errors.New("no slot at those coordinates")
	ErrSlotOccupied   = errors.New("slot is occupied")
	ErrSlotNotOpen    = errors.New("slot is not open")
)

// Lobby is an immutable snapshot of one pre-game session. Transition
// functions take a snapshot and return either a fully valid new snapshot or
// an error; they never hand back a partially updated lobby.
type Lobby struct {
	Name        string       `json:"name"`
	Map         maps.MapInfo `json:"map"`
	GameType    GameType     `json:"gameType"`
	GameSubType int          `json:"gameSubType"`
	HostID      uuid.UUID    `json:"host"`
	Teams       []Team       `json:"teams"`
}

// New builds a lobby of the requested shape and seats the host in the first
// available slot. GameSubType ranges: topVBottom 1..numSlots-1, team modes
// 2..min(4, numSlots); other modes ignore it.
func New(name string, m maps.MapInfo, gameType GameType, gameSubType, numSlots int,
	hostName string, hostUserID uuid.UUID, hostRace Race, allowObservers bool) (Lobby, error) {

	var teams []Team
	switch gameType {
	case GameMelee, GameFFA, GameOneVOne:
		teams = []Team{newTeam("Players", numSlots)}

	case GameTopVBottom:
		if gameSubType < 1 || gameSubType > numSlots-1 {
			return Lobby{}, fmt.Errorf("%w: topVBottom wants 1..%d, got %d",
				ErrBadGameSubType, numSlots-1, gameSubType)
		}
		teams = []Team{
			newTeam("Top", gameSubType),
			newTeam("Bottom", numSlots-gameSubType),
		}

	case GameTeamMelee, GameTeamFFA:
		maxTeams := min(4, numSlots)
		if gameSubType < 2 || gameSubType > maxTeams {
			return Lobby{}, fmt.Errorf("%w: team modes want 2..%d, got %d",
				ErrBadGameSubType, maxTeams, gameSubType)
		}
		base, rem := numSlots/gameSubType, numSlots%gameSubType
		for i := 0; i < gameSubType; i++ {
			size := base
			if i < rem {
				size++
			}
			teams = append(teams, newTeam(fmt.Sprintf("Team %d", i+1), size))
		}

	case GameUms:
		for _, force := range m.Forces {
			t := Team{Name: force.Name, OriginalSize: len(force.Players)}
			for _, fp := range force.Players {
				t.Slots = append(t.Slots, umsSlot(fp))
			}
			teams = append(teams, t)
		}
		if len(teams) == 0 {
			return Lobby{}, fmt.Errorf("map %q has no force data for pre-set slots", m.Name)
		}

	default:
		return Lobby{}, fmt.Errorf("unknown game type %q", gameType)
	}

	if allowObservers && gameType != GameUms {
		obs := newTeam("Observers", max(0, 8-numSlots))
		obs.IsObserver = true
		teams = append(teams, obs)
	}

	l := Lobby{Name: name, Map: m, GameType: gameType, GameSubType: gameSubType, Teams: teams}

	ti, si, ok := l.FindAvailableSlot()
	if !ok {
		return Lobby{}, fmt.Errorf("map %q provides no open slot for the host", m.Name)
	}
	host := HumanFor(l.Teams[ti].Slots[si], hostName, hostUserID, hostRace)
	l, err := l.AddPlayer(ti, si, host)
	if err != nil {
		return Lobby{}, err
	}
	l.HostID = host.ID
	return l, nil
}

func umsSlot(fp maps.ForcePlayer) Slot {
	race := Race(fp.Race)
	if race == "" {
		race = RaceRandom
	}
	if fp.Computer {
		return NewUmsComputer(race, fp.ID)
	}
	s := NewOpenSlot()
	s.Race = race
	s.HasForcedRace = race != RaceRandom
	s.PlayerID = fp.ID
	return s
}

// HumanFor builds the human slot that takes over dst, adopting the
// destination's pre-set race and seat index on pre-set-slots maps.
func HumanFor(dst Slot, name string, userID uuid.UUID, race Race) Slot {
	h := NewHuman(name, userID, race)
	if dst.HasForcedRace {
		h.Race = dst.Race
		h.HasForcedRace = true
	}
	h.PlayerID = dst.PlayerID
	return h
}

// clone deep-copies the team slices so callers can mutate freely.
func (l Lobby) clone() Lobby {
	out := l
	out.Teams = make([]Team, len(l.Teams))
	for i, t := range l.Teams {
		out.Teams[i] = t.clone()
	}
	return out
}

// SlotAt returns the slot at the given coordinates.
func (l Lobby) SlotAt(teamIndex, slotIndex int) (Slot, error) {
	if teamIndex < 0 || teamIndex >= len(l.Teams) {
		return Slot{}, ErrBadCoordinates
	}
	t := l.Teams[teamIndex]
	if slotIndex < 0 || slotIndex >= len(t.Slots) {
		return Slot{}, ErrBadCoordinates
	}
	return t.Slots[slotIndex], nil
}

// HostSlot returns the current host's slot.
func (l Lobby) HostSlot() (Slot, bool) {
	for _, t := range l.Teams {
		for _, s := range t.Slots {
			if s.ID == l.HostID {
				return s, true
			}
		}
	}
	return Slot{}, false
}

// FindSlotByUser locates the slot occupied by the given user.
func (l Lobby) FindSlotByUser(userID uuid.UUID) (teamIndex, slotIndex int, ok bool) {
	for ti, t := range l.Teams {
		for si, s := range t.Slots {
			if (s.Type == TypeHuman || s.Type == TypeObserver) && s.UserID == userID {
				return ti, si, true
			}
		}
	}
	return 0, 0, false
}

// FindAvailableSlot returns the first joinable slot, scanning playable teams
// in order and the observer team last.
func (l Lobby) FindAvailableSlot() (teamIndex, slotIndex int, ok bool) {
	scan := func(wantObserver bool) (int, int, bool) {
		for ti, t := range l.Teams {
			if t.IsObserver != wantObserver {
				continue
			}
			for si, s := range t.Slots {
				if s.OpenForJoin() {
					return ti, si, true
				}
			}
		}
		return 0, 0, false
	}
	if ti, si, found := scan(false); found {
		return ti, si, true
	}
	return scan(true)
}

// HumanSlots returns every human and observer slot in team-then-slot order.
func (l Lobby) HumanSlots() []Slot {
	var out []Slot
	for _, t := range l.Teams {
		for _, s := range t.Slots {
			if s.Type == TypeHuman || s.Type == TypeObserver {
				out = append(out, s)
			}
		}
	}
	return out
}

// HasOpposingSides reports whether a match could meaningfully start. On maps
// with pre-set slots and in team modes, at least two playable teams must
// hold a player; in free-for-all style modes every player is their own side,
// so two occupied player slots suffice.
func (l Lobby) HasOpposingSides() bool {
	if l.GameType == GameUms || l.GameType.teamBased() {
		sides := 0
		for _, t := range l.Teams {
			if !t.IsObserver && t.playerCount() > 0 {
				sides++
			}
		}
		return sides >= 2
	}
	players := 0
	for _, t := range l.Teams {
		if !t.IsObserver {
			players += t.playerCount()
		}
	}
	return players >= 2
}

// AddPlayer seats player at the given coordinates. The destination must be
// open (or controlled-open); the player slot keeps its own fresh ID.
func (l Lobby) AddPlayer(teamIndex, slotIndex int, player Slot) (Lobby, error) {
	dst, err := l.SlotAt(teamIndex, slotIndex)
	if err != nil {
		return l, err
	}
	if !dst.OpenForJoin() {
		return l, ErrSlotNotOpen
	}
	if l.Teams[teamIndex].IsObserver && player.Type != TypeObserver {
		return l, fmt.Errorf("only observers may sit in the observer team")
	}

	out := l.clone()
	out.Teams[teamIndex].Slots[slotIndex] = player
	return out.normalizeControl(), nil
}

// RemovePlayer vacates the slot at the given coordinates. The seat is
// replaced with a brand-new open slot (pre-set pinning preserved). When the
// removed human was the host, hosting passes to the next human in
// team-then-slot order; empty reports that no humans remain and the caller
// must delete the lobby.
func (l Lobby) RemovePlayer(teamIndex, slotIndex int) (out Lobby, empty bool, err error) {
	removed, err := l.SlotAt(teamIndex, slotIndex)
	if err != nil {
		return l, false, err
	}
	if !removed.Occupied() {
		return l, false, fmt.Errorf("slot is not occupied")
	}
	if removed.Type == TypeUmsComputer {
		return l, false, fmt.Errorf("scenario computers cannot be removed")
	}

	out = l.clone()
	out.Teams[teamIndex].Slots[slotIndex] = vacatedSlot(removed)
	out = out.normalizeControl()

	if removed.ID == out.HostID {
		next, found := out.nextHumanSlot()
		if !found {
			return out, true, nil
		}
		out.HostID = next.ID
	} else if len(out.HumanSlots()) == 0 {
		return out, true, nil
	}
	return out, false, nil
}

// vacatedSlot builds the fresh open slot left behind by a departing
// occupant, restoring the seat's pre-set pinning.
func vacatedSlot(old Slot) Slot {
	s := NewOpenSlot()
	if old.PlayerID != 0 || old.HasForcedRace {
		s.Race = old.Race
		s.HasForcedRace = old.HasForcedRace
		s.PlayerID = old.PlayerID
	}
	if old.Type == TypeObserver {
		s.Race = RaceRandom
		s.HasForcedRace = false
	}
	return s
}

func (l Lobby) nextHumanSlot() (Slot, bool) {
	for _, t := range l.Teams {
		for _, s := range t.Slots {
			if s.Type == TypeHuman || s.Type == TypeObserver {
				return s, true
			}
		}
	}
	return Slot{}, false
}

// MovePlayerToSlot relocates a human to an open seat, preserving the slot's
// identity (same ID) so diffing reports a move rather than a leave+join. On
// pre-set-slots maps the mover adopts the destination seat's pinned race and
// seat index; moving into a seat controlled by another player fails.
func (l Lobby) MovePlayerToSlot(srcTeam, srcSlot, dstTeam, dstSlot int) (Lobby, error) {
	src, err := l.SlotAt(srcTeam, srcSlot)
	if err != nil {
		return l, err
	}
	dst, err := l.SlotAt(dstTeam, dstSlot)
	if err != nil {
		return l, err
	}
	if src.Type != TypeHuman {
		return l, fmt.Errorf("only human players can change slots")
	}
	if !dst.OpenForJoin() {
		return l, ErrSlotNotOpen
	}
	if dst.Type == TypeControlledOpen && dst.ControlledBy != src.ID {
		return l, fmt.Errorf("slot is controlled by another player")
	}
	if l.Teams[dstTeam].IsObserver {
		return l, fmt.Errorf("players cannot move into the observer team")
	}

	moved := src
	if dst.HasForcedRace {
		moved.Race = dst.Race
		moved.HasForcedRace = true
	}
	moved.PlayerID = dst.PlayerID
	moved.ControlledBy = uuid.Nil

	out := l.clone()
	out.Teams[dstTeam].Slots[dstSlot] = moved
	out.Teams[srcTeam].Slots[srcSlot] = vacatedSlot(src)
	return out.normalizeControl(), nil
}

// SetRace picks a race for the slot. Fails for seat types without a race
// and for seats whose race the map pins.
func (l Lobby) SetRace(teamIndex, slotIndex int, race Race) (Lobby, error) {
	s, err := l.SlotAt(teamIndex, slotIndex)
	if err != nil {
		return l, err
	}
	if !s.CanHoldRace() {
		return l, fmt.Errorf("%s slots have no race to set", s.Type)
	}
	if s.HasForcedRace {
		return l, fmt.Errorf("the map pins this slot's race")
	}
	out := l.clone()
	out.Teams[teamIndex].Slots[slotIndex].Race = race
	return out, nil
}

// OpenSlot reopens a closed seat. The seat gets a new identity.
func (l Lobby) OpenSlot(teamIndex, slotIndex int) (Lobby, error) {
	s, err := l.SlotAt(teamIndex, slotIndex)
	if err != nil {
		return l, err
	}
	if s.Type != TypeClosed && s.Type != TypeControlledClosed {
		return l, fmt.Errorf("slot is not closed")
	}
	opened := vacatedSlot(s)
	out := l.clone()
	out.Teams[teamIndex].Slots[slotIndex] = opened
	return out.normalizeControl(), nil
}

// CloseSlot closes an unoccupied seat. Closing an occupied seat is invalid;
// kick or remove the occupant first.
func (l Lobby) CloseSlot(teamIndex, slotIndex int) (Lobby, error) {
	s, err := l.SlotAt(teamIndex, slotIndex)
	if err != nil {
		return l, err
	}
	if s.Occupied() {
		return l, ErrSlotOccupied
	}
	if s.Type == TypeClosed || s.Type == TypeControlledClosed {
		return l, fmt.Errorf("slot is already closed")
	}
	closed := NewClosedSlot()
	closed.Race = s.Race
	closed.HasForcedRace = s.HasForcedRace
	closed.PlayerID = s.PlayerID
	out := l.clone()
	out.Teams[teamIndex].Slots[slotIndex] = closed
	return out.normalizeControl(), nil
}

// MakeObserver moves a human from a playable team into the observer team,
// keeping the slot ID so diffing sees a move. The vacated position is
// deleted from its team; the caller must pass that index to the diff engine.
func (l Lobby) MakeObserver(teamIndex, slotIndex int) (Lobby, error) {
	if l.GameType == GameUms {
		return l, fmt.Errorf("pre-set-slots maps have fixed teams")
	}
	s, err := l.SlotAt(teamIndex, slotIndex)
	if err != nil {
		return l, err
	}
	if s.Type != TypeHuman {
		return l, fmt.Errorf("only human players can become observers")
	}
	oti, ok := l.observerTeam()
	if !ok {
		return l, fmt.Errorf("this lobby does not allow observers")
	}

	obs := s
	obs.Type = TypeObserver
	obs.Race = ""
	obs.HasForcedRace = false

	out := l.clone()
	out.Teams[teamIndex].Slots = deleteSlot(out.Teams[teamIndex].Slots, slotIndex)
	out.Teams[oti].Slots = append(out.Teams[oti].Slots, obs)
	return out, nil
}

// RemoveObserver moves an observer back into the first playable team with
// room, keeping the slot ID. The observer team shrinks at slotIndex; the
// caller must pass that index to the diff engine.
func (l Lobby) RemoveObserver(slotIndex int) (Lobby, error) {
	oti, ok := l.observerTeam()
	if !ok {
		return l, fmt.Errorf("this lobby does not allow observers")
	}
	s, err := l.SlotAt(oti, slotIndex)
	if err != nil {
		return l, err
	}
	if s.Type != TypeObserver {
		return l, fmt.Errorf("slot is not an observer")
	}

	dst := -1
	for ti, t := range l.Teams {
		if !t.IsObserver && len(t.Slots) < t.OriginalSize {
			dst = ti
			break
		}
	}
	if dst == -1 {
		return l, fmt.Errorf("no team has room for another player")
	}

	human := s
	human.Type = TypeHuman
	human.Race = RaceRandom

	out := l.clone()
	out.Teams[oti].Slots = deleteSlot(out.Teams[oti].Slots, slotIndex)
	out.Teams[dst].Slots = append(out.Teams[dst].Slots, human)
	return out, nil
}

func (l Lobby) observerTeam() (int, bool) {
	for ti, t := range l.Teams {
		if t.IsObserver {
			return ti, true
		}
	}
	return 0, false
}

func deleteSlot(slots []Slot, i int) []Slot {
	out := make([]Slot, 0, len(slots)-1)
	out = append(out, slots[:i]...)
	return append(out, slots[i+1:]...)
}

// normalizeControl re-points controlled seats on pre-set-slots maps: within
// each force the first human (lowest slot index) controls the force's empty
// seats; with no human left they revert to plain open/closed. Slot IDs are
// preserved, only Type and ControlledBy change.
func (l Lobby) normalizeControl() Lobby {
	if l.GameType != GameUms {
		return l
	}
	for ti := range l.Teams {
		t := &l.Teams[ti]
		controller := uuid.Nil
		for _, s := range t.Slots {
			if s.Type == TypeHuman {
				controller = s.ID
				break
			}
		}
		for si, s := range t.Slots {
			switch s.Type {
			case TypeOpen, TypeControlledOpen:
				if controller != uuid.Nil && s.ID != controller {
					s.Type = TypeControlledOpen
					s.ControlledBy = controller
				} else {
					s.Type = TypeOpen
					s.ControlledBy = uuid.Nil
				}
			case TypeClosed, TypeControlledClosed:
				if controller != uuid.Nil {
					s.Type = TypeControlledClosed
					s.ControlledBy = controller
				} else {
					s.Type = TypeClosed
					s.ControlledBy = uuid.Nil
				}
			default:
				continue
			}
			t.Slots[si] = s
		}
	}
	return l
}

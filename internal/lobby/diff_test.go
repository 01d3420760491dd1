// internal/lobby/diff_test.go
package lobby

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/warhall/internal/maps"
)

func kinds(events []DiffEvent) []DiffKind {
	out := make([]DiffKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestDiffIdenticalSnapshot(t *testing.T) {
	l, _ := newMelee(t, "alice")
	assert.Nil(t, Diff(&l, &l, DiffContext{}))
}

func TestDiffJoinIsOneCreate(t *testing.T) {
	l, _ := newMelee(t, "alice")
	joined, err := l.AddPlayer(0, 1, NewHuman("bob", uuid.New(), RaceZerg))
	require.NoError(t, err)

	events := Diff(&l, &joined, DiffContext{})
	require.Len(t, events, 1)
	assert.Equal(t, DiffSlotCreate, events[0].Kind)
	assert.Equal(t, 0, events[0].TeamIndex)
	assert.Equal(t, 1, events[0].SlotIndex)
	require.NotNil(t, events[0].Slot)
	assert.Equal(t, "bob", events[0].Slot.Name)
}

func TestDiffNonHostLeaveEmitsNoHostChange(t *testing.T) {
	l, _ := newMelee(t, "alice")
	bobUser := uuid.New()
	l, err := l.AddPlayer(0, 1, NewHuman("bob", bobUser, RaceZerg))
	require.NoError(t, err)

	left, _, err := l.RemovePlayer(0, 1)
	require.NoError(t, err)

	events := Diff(&l, &left, DiffContext{})
	require.Equal(t, []DiffKind{DiffLeave, DiffSlotCreate}, kinds(events))
	assert.Equal(t, bobUser, events[0].UserID)
	assert.Equal(t, "bob", events[0].Name)
}

func TestDiffHostLeaveOrdering(t *testing.T) {
	l, _ := newMelee(t, "alice")
	l, err := l.AddPlayer(0, 1, NewHuman("bob", uuid.New(), RaceZerg))
	require.NoError(t, err)
	bob := l.Teams[0].Slots[1]

	left, _, err := l.RemovePlayer(0, 0)
	require.NoError(t, err)

	events := Diff(&l, &left, DiffContext{})
	require.Equal(t, []DiffKind{DiffHostChange, DiffLeave, DiffSlotCreate}, kinds(events))
	assert.Equal(t, bob.ID, events[0].SlotID)
	assert.Equal(t, "bob", events[0].Name)
	assert.Equal(t, "alice", events[1].Name)
}

func TestDiffDepartureHints(t *testing.T) {
	l, _ := newMelee(t, "alice")
	bobUser := uuid.New()
	l, err := l.AddPlayer(0, 1, NewHuman("bob", bobUser, RaceZerg))
	require.NoError(t, err)
	kicked, _, err := l.RemovePlayer(0, 1)
	require.NoError(t, err)

	events := Diff(&l, &kicked, DiffContext{KickedUser: bobUser})
	require.NotEmpty(t, events)
	assert.Equal(t, DiffKick, events[0].Kind)

	events = Diff(&l, &kicked, DiffContext{BannedUser: bobUser})
	assert.Equal(t, DiffBan, events[0].Kind)
}

func TestDiffMoveIsChangePlusCreate(t *testing.T) {
	l, _ := newMelee(t, "alice")
	hostID := l.HostID

	moved, err := l.MovePlayerToSlot(0, 0, 0, 2)
	require.NoError(t, err)

	events := Diff(&l, &moved, DiffContext{})
	require.Equal(t, []DiffKind{DiffSlotCreate, DiffSlotChange}, kinds(events))
	assert.Equal(t, 0, events[0].SlotIndex, "the vacated seat is new")
	assert.Equal(t, 2, events[1].SlotIndex)
	require.NotNil(t, events[1].Slot)
	assert.Equal(t, hostID, events[1].Slot.ID)
}

func TestDiffRacePick(t *testing.T) {
	l, _ := newMelee(t, "alice")
	picked, err := l.SetRace(0, 0, RaceProtoss)
	require.NoError(t, err)

	events := Diff(&l, &picked, DiffContext{})
	require.Len(t, events, 1)
	assert.Equal(t, DiffRaceChange, events[0].Kind)
	assert.Equal(t, RaceProtoss, events[0].Race)
	assert.Equal(t, 0, events[0].SlotIndex)
}

func TestDiffMakeObserverUsesCallerDeletedIndex(t *testing.T) {
	l, err := New("obs", testMap, GameMelee, 0, 4, "alice", uuid.New(), RaceRandom, true)
	require.NoError(t, err)
	l, err = l.AddPlayer(0, 1, NewHuman("bob", uuid.New(), RaceZerg))
	require.NoError(t, err)
	bobID := l.Teams[0].Slots[1].ID

	obs, err := l.MakeObserver(0, 1)
	require.NoError(t, err)

	events := Diff(&l, &obs, DiffContext{DeletedSlots: map[int]int{0: 1}})
	require.NotEmpty(t, events)
	assert.Equal(t, DiffSlotDeleted, events[0].Kind)
	assert.Equal(t, 0, events[0].TeamIndex)
	assert.Equal(t, 1, events[0].SlotIndex, "the engine reports the index the caller deleted")

	// The remaining events repoint shifted seats and land bob in the
	// observer team, all as same-id changes.
	last := events[len(events)-1]
	assert.Equal(t, DiffSlotChange, last.Kind)
	assert.Equal(t, 1, last.TeamIndex)
	require.NotNil(t, last.Slot)
	assert.Equal(t, bobID, last.Slot.ID)
	for _, e := range events[1:] {
		assert.Equal(t, DiffSlotChange, e.Kind)
	}
}

// replay applies a diff event list the way a client would: departures are
// informational (the vacated seat arrives as its own create), deletions
// shrink teams, creates and changes replace-or-append at their coordinates.
func replay(t *testing.T, base Lobby, events []DiffEvent) Lobby {
	t.Helper()
	out := base.clone()
	for _, e := range events {
		switch e.Kind {
		case DiffHostChange:
			out.HostID = e.SlotID
		case DiffLeave, DiffKick, DiffBan:
		case DiffSlotDeleted:
			out.Teams[e.TeamIndex].Slots = deleteSlot(out.Teams[e.TeamIndex].Slots, e.SlotIndex)
		case DiffSlotCreate, DiffSlotChange:
			require.NotNil(t, e.Slot)
			slots := out.Teams[e.TeamIndex].Slots
			if e.SlotIndex == len(slots) {
				out.Teams[e.TeamIndex].Slots = append(slots, *e.Slot)
			} else {
				slots[e.SlotIndex] = *e.Slot
			}
		case DiffRaceChange:
			out.Teams[e.TeamIndex].Slots[e.SlotIndex].Race = e.Race
		default:
			t.Fatalf("unknown diff kind %q", e.Kind)
		}
	}
	return out
}

func TestDiffReplayReconstructsSnapshot(t *testing.T) {
	l, err := New("obs", testMap, GameMelee, 0, 4, "alice", uuid.New(), RaceTerran, true)
	require.NoError(t, err)
	l, err = l.AddPlayer(0, 1, NewHuman("bob", uuid.New(), RaceZerg))
	require.NoError(t, err)

	step := func(next Lobby, ctx DiffContext) {
		t.Helper()
		rebuilt := replay(t, l, Diff(&l, &next, ctx))
		assert.Equal(t, next.HostID, rebuilt.HostID)
		assert.Equal(t, next.Teams, rebuilt.Teams)
		l = next
	}

	moved, err := l.MovePlayerToSlot(0, 1, 0, 3)
	require.NoError(t, err)
	step(moved, DiffContext{})

	picked, err := l.SetRace(0, 0, RaceProtoss)
	require.NoError(t, err)
	step(picked, DiffContext{})

	obs, err := l.MakeObserver(0, 3)
	require.NoError(t, err)
	step(obs, DiffContext{DeletedSlots: map[int]int{0: 3}})

	hostLeft, empty, err := l.RemovePlayer(0, 0)
	require.NoError(t, err)
	require.False(t, empty)
	step(hostLeft, DiffContext{})
}

func TestDiffControlHandoffSurfaces(t *testing.T) {
	m := maps.MapInfo{
		ID: "escape", Name: "The Escape", Hash: "9cd0", NumSlots: 3,
		Forces: []maps.Force{
			{Name: "Survivors", TeamID: 1, Players: []maps.ForcePlayer{{ID: 1}, {ID: 2}, {ID: 3}}},
		},
	}
	l, err := New("escape", m, GameUms, 0, 3, "alice", uuid.New(), RaceRandom, false)
	require.NoError(t, err)
	l, err = l.AddPlayer(0, 1, NewHuman("bob", uuid.New(), RaceRandom))
	require.NoError(t, err)
	bobID := l.Teams[0].Slots[1].ID
	ctrlSeatID := l.Teams[0].Slots[2].ID

	left, _, err := l.RemovePlayer(0, 0)
	require.NoError(t, err)

	events := Diff(&l, &left, DiffContext{})
	require.Equal(t, []DiffKind{DiffHostChange, DiffLeave, DiffSlotCreate, DiffSlotChange}, kinds(events))

	// The controlled seat stayed put but its controller changed; a replaying
	// client must see that as an in-place slot change.
	handoff := events[3]
	require.NotNil(t, handoff.Slot)
	assert.Equal(t, ctrlSeatID, handoff.Slot.ID)
	assert.Equal(t, bobID, handoff.Slot.ControlledBy)

	// The seat alice vacated is created already under bob's control.
	created := events[2]
	require.NotNil(t, created.Slot)
	assert.Equal(t, TypeControlledOpen, created.Slot.Type)
	assert.Equal(t, bobID, created.Slot.ControlledBy)
}

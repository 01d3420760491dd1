// internal/lobby/diff.go
package lobby

import "github.com/google/uuid"

// DiffKind discriminates diff events.
type DiffKind string

const (
	DiffHostChange  DiffKind = "hostChange"
	DiffLeave       DiffKind = "leave"
	DiffKick        DiffKind = "kick"
	DiffBan         DiffKind = "ban"
	DiffSlotDeleted DiffKind = "slotDeleted"
	DiffSlotCreate  DiffKind = "slotCreate"
	DiffSlotChange  DiffKind = "slotChange"
	DiffRaceChange  DiffKind = "raceChange"
)

// DiffEvent is one atomic, typed description of a change between two lobby
// snapshots. Events are ordered for deterministic client-side replay:
// host change, departures, deletions, creations, then same-id changes.
type DiffEvent struct {
	Kind      DiffKind  `json:"kind"`
	TeamIndex int       `json:"teamIndex"`
	SlotIndex int       `json:"slotIndex"`
	Slot      *Slot     `json:"slot,omitempty"`   // slotCreate, slotChange
	SlotID    uuid.UUID `json:"slotId,omitempty"` // departures, hostChange
	UserID    uuid.UUID `json:"userId,omitempty"` // departures
	Name      string    `json:"name,omitempty"`   // departures, hostChange
	Race      Race      `json:"race,omitempty"`   // raceChange
}

// DiffContext carries hints the snapshots alone cannot reconstruct: which
// departing human was kicked or banned, and which slot index disappeared
// from each team that shrank. A shrunk team is ambiguous from snapshots
// alone once several slots changed simultaneously, so the caller must say
// which index it deleted rather than have the engine guess.
type DiffContext struct {
	KickedUser   uuid.UUID
	BannedUser   uuid.UUID
	DeletedSlots map[int]int // team index -> deleted slot index
}

type slotRef struct {
	team, slot int
	s          Slot
}

// Diff compares two lobby snapshots and returns the ordered event list a
// client replays over old to arrive at new. Identical snapshots (the same
// pointer) produce no events.
func Diff(oldL, newL *Lobby, ctx DiffContext) []DiffEvent {
	if oldL == newL {
		return nil
	}

	var events []DiffEvent

	// 1. Host change.
	if oldL.HostID != newL.HostID {
		if host, ok := newL.HostSlot(); ok {
			events = append(events, DiffEvent{
				Kind:   DiffHostChange,
				SlotID: host.ID,
				Name:   host.Name,
			})
		}
	}

	oldByID := indexSlots(oldL)
	newByID := indexSlots(newL)

	// 2. Departures: humans present before, gone now.
	for _, t := range oldL.Teams {
		for _, s := range t.Slots {
			if s.Type != TypeHuman && s.Type != TypeObserver {
				continue
			}
			if _, still := newByID[s.ID]; still {
				continue
			}
			kind := DiffLeave
			switch s.UserID {
			case ctx.KickedUser:
				kind = DiffKick
			case ctx.BannedUser:
				kind = DiffBan
			}
			events = append(events, DiffEvent{
				Kind:   kind,
				SlotID: s.ID,
				UserID: s.UserID,
				Name:   s.Name,
			})
		}
	}

	// 3. Deletions: teams that shrank, at the caller-supplied index.
	for ti := range oldL.Teams {
		if ti >= len(newL.Teams) {
			break
		}
		if len(newL.Teams[ti].Slots) < len(oldL.Teams[ti].Slots) {
			events = append(events, DiffEvent{
				Kind:      DiffSlotDeleted,
				TeamIndex: ti,
				SlotIndex: ctx.DeletedSlots[ti],
			})
		}
	}

	// 4. Creations: ids present now that did not exist before.
	for ti, t := range newL.Teams {
		for si, s := range t.Slots {
			if _, existed := oldByID[s.ID]; existed {
				continue
			}
			slot := s
			events = append(events, DiffEvent{
				Kind:      DiffSlotCreate,
				TeamIndex: ti,
				SlotIndex: si,
				Slot:      &slot,
			})
		}
	}

	// 5. Same-id changes: a moved slot is a slotChange, a race pick at the
	// same coordinates is a raceChange; anything unobservable emits nothing.
	for ti, t := range newL.Teams {
		for si, s := range t.Slots {
			or, ok := oldByID[s.ID]
			if !ok {
				continue
			}
			switch {
			case or.team != ti || or.slot != si,
				// Control handoffs change a seat in place without moving it.
				or.s.Type != s.Type || or.s.ControlledBy != s.ControlledBy:
				slot := s
				events = append(events, DiffEvent{
					Kind:      DiffSlotChange,
					TeamIndex: ti,
					SlotIndex: si,
					Slot:      &slot,
				})
			case or.s.Race != s.Race:
				events = append(events, DiffEvent{
					Kind:      DiffRaceChange,
					TeamIndex: ti,
					SlotIndex: si,
					Race:      s.Race,
				})
			}
		}
	}

	return events
}

func indexSlots(l *Lobby) map[uuid.UUID]slotRef {
	out := make(map[uuid.UUID]slotRef)
	for ti, t := range l.Teams {
		for si, s := range t.Slots {
			out[s.ID] = slotRef{team: ti, slot: si, s: s}
		}
	}
	return out
}

// internal/lobby/team.go
package lobby

// Team is an ordered sequence of slots. OriginalSize remembers the team's
// capacity at lobby creation so observer moves (which physically shrink and
// grow teams) know how much room remains.
type Team struct {
	Name         string `json:"name"`
	Slots        []Slot `json:"slots"`
	OriginalSize int    `json:"originalSize"`
	IsObserver   bool   `json:"isObserver"`
}

func newTeam(name string, numSlots int) Team {
	slots := make([]Slot, numSlots)
	for i := range slots {
		slots[i] = NewOpenSlot()
	}
	return Team{Name: name, Slots: slots, OriginalSize: numSlots}
}

// clone returns a deep copy so transition functions never alias the slot
// slice of the snapshot they were given.
func (t Team) clone() Team {
	out := t
	out.Slots = make([]Slot, len(t.Slots))
	copy(out.Slots, t.Slots)
	return out
}

// HumanCount returns the number of human-occupied slots (observers included).
func (t Team) HumanCount() int {
	n := 0
	for _, s := range t.Slots {
		if s.Type == TypeHuman || s.Type == TypeObserver {
			n++
		}
	}
	return n
}

func (t Team) playerCount() int {
	n := 0
	for _, s := range t.Slots {
		if s.isPlayer() {
			n++
		}
	}
	return n
}

// internal/registry/registry.go
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/warhall/internal/activity"
	"github.com/jason-s-yu/warhall/internal/lobby"
	"github.com/jason-s-yu/warhall/internal/maps"
	"github.com/jason-s-yu/warhall/internal/transport"
	"github.com/jason-s-yu/warhall/internal/wire"
)

// ListPath is the pub/sub root carrying lobby-list add/update/delete events.
const ListPath = "lobbies"

// LobbyPath is the broadcast channel for everyone in the named lobby.
func LobbyPath(name string) string {
	return ListPath + "/" + name
}

// UserPath is the per-user status channel inside a lobby.
func UserPath(name, userName string) string {
	return LobbyPath(name) + "/" + userName
}

// ClientPath is the private per-connection channel inside a lobby.
func ClientPath(name string, userID, clientID uuid.UUID) string {
	return LobbyPath(name) + "/" + userID.String() + "/" + clientID.String()
}

// Registry is the authoritative owner of all live lobbies: their snapshots,
// client associations, ban lists, and transient countdown/loading status.
// Commands run synchronously under one mutex to their commit point; the only
// suspension happens in the countdown goroutine and in map lookups performed
// before any mutation. Snapshots are immutable, so anything handed to the
// diff engine or a subscriber stays stable forever.
type Registry struct {
	log      *logrus.Logger
	bus      transport.Transport
	activity activity.Registry
	maps     maps.Provider
	loader   GameLoader

	// Overridable so tests can run the handshake in milliseconds.
	CountdownTime  time.Duration
	AllowStartTime time.Duration

	mu         sync.Mutex
	lobbies    map[string]*lobby.Lobby
	members    map[string]map[uuid.UUID]*Session // lobby name -> clientID -> session
	clients    map[uuid.UUID]string              // clientID -> lobby name
	bans       map[string]map[string]bool        // lobby name -> banned player names
	countdowns map[string]*countdown
	loading    map[string]bool
	listSubs   map[*transport.Conn]int
}

// New builds a registry over its collaborators.
func New(log *logrus.Logger, bus transport.Transport, act activity.Registry,
	mapProvider maps.Provider, loader GameLoader) *Registry {
	return &Registry{
		log:            log,
		bus:            bus,
		activity:       act,
		maps:           mapProvider,
		loader:         loader,
		CountdownTime:  5 * time.Second,
		AllowStartTime: 2 * time.Second,
		lobbies:        make(map[string]*lobby.Lobby),
		members:        make(map[string]map[uuid.UUID]*Session),
		clients:        make(map[uuid.UUID]string),
		bans:           make(map[string]map[string]bool),
		countdowns:     make(map[string]*countdown),
		loading:        make(map[string]bool),
		listSubs:       make(map[*transport.Conn]int),
	}
}

// CreateLobbyRequest is the validated input for CreateLobby.
type CreateLobbyRequest struct {
	Name           string         `json:"name"`
	MapID          string         `json:"mapId"`
	GameType       lobby.GameType `json:"gameType"`
	GameSubType    int            `json:"gameSubType"`
	NumSlots       int            `json:"numSlots"`
	Race           lobby.Race     `json:"race"`
	AllowObservers bool           `json:"allowObservers"`
}

func authorize(s *Session) error {
	if s == nil || s.Conn == nil || s.UserID == uuid.Nil {
		return wire.Unauthorizedf("no authenticated session")
	}
	return nil
}

// CreateLobby creates a lobby hosted by the caller. The map lookup is the
// only I/O and happens before any state is touched.
func (r *Registry) CreateLobby(ctx context.Context, s *Session, req CreateLobbyRequest) error {
	if err := authorize(s); err != nil {
		return err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return wire.BadRequestf("lobby name must not be empty")
	}

	infos, err := r.maps.GetMapInfo(ctx, []string{req.MapID}, s.UserID)
	if err != nil || len(infos) == 0 {
		return wire.BadRequestf("unknown map %q", req.MapID)
	}
	m := infos[0]
	numSlots := req.NumSlots
	if numSlots == 0 {
		numSlots = m.NumSlots
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, in := r.clients[s.ClientID]; in {
		return wire.Conflictf("client is already in lobby %q", cur)
	}
	if _, taken := r.lobbies[name]; taken {
		return wire.Conflictf("lobby name %q is already in use", name)
	}
	if !r.activity.RegisterActiveClient(s.UserName, s.ClientID) {
		return wire.Conflictf("already active in gameplay activity")
	}

	l, err := lobby.New(name, m, req.GameType, req.GameSubType, numSlots,
		s.UserName, s.UserID, req.Race, req.AllowObservers)
	if err != nil {
		r.activity.UnregisterClientForUser(s.UserName)
		return wire.BadRequestf("%v", err)
	}

	snap := &l
	r.lobbies[name] = snap
	r.members[name] = map[uuid.UUID]*Session{s.ClientID: s}
	r.clients[s.ClientID] = name
	r.bans[name] = make(map[string]bool)

	r.subscribeMember(name, s, snap)
	r.publishList("add", snap)
	r.log.Infof("lobby %q created by %s (%s, %d slots)", name, s.UserName, req.GameType, numSlots)
	return nil
}

// JoinLobby seats the caller in the named lobby's first available slot,
// as a player or an observer depending on where that slot lives.
func (r *Registry) JoinLobby(s *Session, name string, race lobby.Race) error {
	if err := authorize(s); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, in := r.clients[s.ClientID]; in {
		return wire.Conflictf("client is already in lobby %q", cur)
	}
	old, ok := r.lobbies[name]
	if !ok {
		return wire.NotFoundf("no lobby named %q", name)
	}
	if r.bans[name][s.UserName] {
		return wire.Conflictf("you are banned from this lobby")
	}
	if r.transient(name) {
		return wire.Conflictf("lobby is starting a game")
	}
	ti, si, found := old.FindAvailableSlot()
	if !found {
		return wire.Conflictf("lobby is full")
	}
	if !r.activity.RegisterActiveClient(s.UserName, s.ClientID) {
		return wire.Conflictf("already active in gameplay activity")
	}

	var player lobby.Slot
	if old.Teams[ti].IsObserver {
		player = lobby.NewObserver(s.UserName, s.UserID)
	} else {
		player = lobby.HumanFor(old.Teams[ti].Slots[si], s.UserName, s.UserID, race)
	}
	updated, err := old.AddPlayer(ti, si, player)
	if err != nil {
		r.activity.UnregisterClientForUser(s.UserName)
		return wire.BadRequestf("%v", err)
	}

	snap := r.commit(name, old, &updated, lobby.DiffContext{})
	r.members[name][s.ClientID] = s
	r.clients[s.ClientID] = name
	r.subscribeMember(name, s, snap)
	r.log.Infof("%s joined lobby %q", s.UserName, name)
	return nil
}

// LeaveLobby removes the caller from their lobby, rolling back any countdown
// or load phase first. Leaving is always allowed.
func (r *Registry) LeaveLobby(s *Session) error {
	if err := authorize(s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.clients[s.ClientID]
	if !ok {
		return wire.BadRequestf("must be in a lobby")
	}
	return r.removeUser(name, s, lobby.DiffContext{})
}

// removeUser takes a user out of a lobby (leave, kick, or ban per hints).
// Caller holds r.mu.
func (r *Registry) removeUser(name string, target *Session, hints lobby.DiffContext) error {
	old := r.lobbies[name]
	ti, si, found := old.FindSlotByUser(target.UserID)
	if !found {
		return wire.BadRequestf("user %s holds no slot in lobby %q", target.UserName, name)
	}

	// Departures roll back the transient state before they apply.
	r.maybeCancelCountdown(name)

	updated, empty, err := old.RemovePlayer(ti, si)
	if err != nil {
		return wire.BadRequestf("%v", err)
	}

	r.bus.Publish(ClientPath(name, target.UserID, target.ClientID),
		&wire.Leave{Type: wire.MsgLeave, User: target.UserID})
	r.unsubscribeMember(name, target)
	delete(r.members[name], target.ClientID)
	delete(r.clients, target.ClientID)
	r.activity.UnregisterClientForUser(target.UserName)

	if empty {
		r.destroyLobby(name)
		return nil
	}
	r.commit(name, old, &updated, hints)
	return nil
}

// destroyLobby tears down every trace of a lobby. Caller holds r.mu.
func (r *Registry) destroyLobby(name string) {
	for _, member := range r.members[name] {
		r.unsubscribeMember(name, member)
		delete(r.clients, member.ClientID)
		r.activity.UnregisterClientForUser(member.UserName)
	}
	delete(r.members, name)
	delete(r.lobbies, name)
	delete(r.bans, name)
	delete(r.loading, name)
	if cd := r.countdowns[name]; cd != nil {
		cd.cancel()
		delete(r.countdowns, name)
	}
	r.bus.Publish(ListPath, &wire.ListUpdate{Action: "delete", Name: name})
	r.log.Infof("lobby %q destroyed", name)
}

// AddComputer fills an open slot with an AI player. Host only.
func (r *Registry) AddComputer(s *Session, teamIndex, slotIndex int) error {
	return r.mutate(s, true, func(name string, old *lobby.Lobby) (lobby.Lobby, lobby.DiffContext, error) {
		if old.GameType == lobby.GameUms {
			return lobby.Lobby{}, lobby.DiffContext{}, wire.BadRequestf("pre-set-slots maps define their own computers")
		}
		if _, err := old.SlotAt(teamIndex, slotIndex); err != nil {
			return lobby.Lobby{}, lobby.DiffContext{}, err
		}
		if old.Teams[teamIndex].IsObserver {
			return lobby.Lobby{}, lobby.DiffContext{}, wire.BadRequestf("computers cannot observe")
		}
		updated, err := old.AddPlayer(teamIndex, slotIndex, lobby.NewComputer(lobby.RaceRandom))
		return updated, lobby.DiffContext{}, err
	})
}

// ChangeSlot moves the caller to another open slot.
func (r *Registry) ChangeSlot(s *Session, teamIndex, slotIndex int) error {
	return r.mutate(s, false, func(name string, old *lobby.Lobby) (lobby.Lobby, lobby.DiffContext, error) {
		sti, ssi, found := old.FindSlotByUser(s.UserID)
		if !found {
			return lobby.Lobby{}, lobby.DiffContext{}, wire.BadRequestf("you hold no slot in this lobby")
		}
		updated, err := old.MovePlayerToSlot(sti, ssi, teamIndex, slotIndex)
		return updated, lobby.DiffContext{}, err
	})
}

// SetRace picks a race for the caller's own slot, or for a computer slot if
// the caller hosts. Race changes are the one mutation still allowed while a
// countdown runs; only the load phase rejects them.
func (r *Registry) SetRace(s *Session, teamIndex, slotIndex int, race lobby.Race) error {
	if err := authorize(s); err != nil {
		return err
	}
	switch race {
	case lobby.RaceZerg, lobby.RaceTerran, lobby.RaceProtoss, lobby.RaceRandom:
	default:
		return wire.BadRequestf("unknown race %q", race)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.clients[s.ClientID]
	if !ok {
		return wire.BadRequestf("must be in a lobby")
	}
	if r.loading[name] {
		return wire.Conflictf("lobby is loading a game")
	}
	old := r.lobbies[name]
	target, err := old.SlotAt(teamIndex, slotIndex)
	if err != nil {
		return wire.BadRequestf("%v", err)
	}
	if target.UserID != s.UserID {
		host, _ := old.HostSlot()
		if target.Type != lobby.TypeComputer || host.UserID != s.UserID {
			return wire.Unauthorizedf("cannot set another player's race")
		}
	}
	updated, err := old.SetRace(teamIndex, slotIndex, race)
	if err != nil {
		return wire.BadRequestf("%v", err)
	}
	r.commit(name, old, &updated, lobby.DiffContext{})
	return nil
}

// OpenSlot reopens a closed slot. Host only.
func (r *Registry) OpenSlot(s *Session, teamIndex, slotIndex int) error {
	return r.mutate(s, true, func(name string, old *lobby.Lobby) (lobby.Lobby, lobby.DiffContext, error) {
		updated, err := old.OpenSlot(teamIndex, slotIndex)
		return updated, lobby.DiffContext{}, err
	})
}

// CloseSlot closes an unoccupied slot. Host only.
func (r *Registry) CloseSlot(s *Session, teamIndex, slotIndex int) error {
	return r.mutate(s, true, func(name string, old *lobby.Lobby) (lobby.Lobby, lobby.DiffContext, error) {
		updated, err := old.CloseSlot(teamIndex, slotIndex)
		return updated, lobby.DiffContext{}, err
	})
}

// MakeObserver moves a player to the observer team. Host only; the vacated
// index is handed to the diff engine since the shrunk team cannot reveal it.
func (r *Registry) MakeObserver(s *Session, teamIndex, slotIndex int) error {
	return r.mutate(s, true, func(name string, old *lobby.Lobby) (lobby.Lobby, lobby.DiffContext, error) {
		updated, err := old.MakeObserver(teamIndex, slotIndex)
		return updated, lobby.DiffContext{DeletedSlots: map[int]int{teamIndex: slotIndex}}, err
	})
}

// RemoveObserver moves an observer back to a playable team. Host only.
func (r *Registry) RemoveObserver(s *Session, slotIndex int) error {
	return r.mutate(s, true, func(name string, old *lobby.Lobby) (lobby.Lobby, lobby.DiffContext, error) {
		oti := -1
		for ti, t := range old.Teams {
			if t.IsObserver {
				oti = ti
			}
		}
		updated, err := old.RemoveObserver(slotIndex)
		return updated, lobby.DiffContext{DeletedSlots: map[int]int{oti: slotIndex}}, err
	})
}

// KickPlayer removes the occupant of a slot. Host only. Kicking a human
// rolls back any transient state first; computers are simply removed.
func (r *Registry) KickPlayer(s *Session, teamIndex, slotIndex int) error {
	return r.expel(s, teamIndex, slotIndex, false)
}

// BanPlayer kicks a human and bars their name from rejoining for the
// lobby's lifetime.
func (r *Registry) BanPlayer(s *Session, teamIndex, slotIndex int) error {
	return r.expel(s, teamIndex, slotIndex, true)
}

func (r *Registry) expel(s *Session, teamIndex, slotIndex int, ban bool) error {
	if err := authorize(s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.clients[s.ClientID]
	if !ok {
		return wire.BadRequestf("must be in a lobby")
	}
	old := r.lobbies[name]
	if err := r.requireHost(old, s); err != nil {
		return err
	}
	target, err := old.SlotAt(teamIndex, slotIndex)
	if err != nil {
		return wire.BadRequestf("%v", err)
	}

	if target.Type == lobby.TypeComputer {
		if ban {
			return wire.BadRequestf("computers cannot be banned")
		}
		r.maybeCancelCountdown(name)
		updated, _, err := old.RemovePlayer(teamIndex, slotIndex)
		if err != nil {
			return wire.BadRequestf("%v", err)
		}
		r.commit(name, old, &updated, lobby.DiffContext{})
		return nil
	}

	if target.Type != lobby.TypeHuman && target.Type != lobby.TypeObserver {
		return wire.BadRequestf("slot holds no player to remove")
	}
	if target.UserID == s.UserID {
		return wire.BadRequestf("cannot kick yourself; leave instead")
	}

	hints := lobby.DiffContext{KickedUser: target.UserID}
	if ban {
		if r.bans[name][target.Name] {
			return wire.Conflictf("%s is already banned", target.Name)
		}
		r.bans[name][target.Name] = true
		hints = lobby.DiffContext{BannedUser: target.UserID}
	}

	victim := r.memberByUser(name, target.UserID)
	if victim == nil {
		return wire.BadRequestf("player %s has no live session", target.Name)
	}
	return r.removeUser(name, victim, hints)
}

// SendChat relays a chat line to the lobby broadcast path.
func (r *Registry) SendChat(s *Session, text string) error {
	if err := authorize(s); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return wire.BadRequestf("empty chat message")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.clients[s.ClientID]
	if !ok {
		return wire.BadRequestf("must be in a lobby")
	}
	r.bus.Publish(LobbyPath(name), &wire.Chat{
		Type: wire.MsgChat,
		From: s.UserName,
		User: s.UserID,
		Text: text,
		Time: time.Now().Unix(),
	})
	return nil
}

// SubscribeList registers a connection for lobby-list updates. Repeat
// subscriptions stack; the list is only left after as many unsubscribes.
func (r *Registry) SubscribeList(conn *transport.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listSubs[conn]++
	if r.listSubs[conn] > 1 {
		return
	}
	snapshot := r.listSnapshot()
	r.bus.SubscribeClient(conn, ListPath, func() interface{} {
		return &wire.ListSnapshot{Action: "snapshot", Payload: snapshot}
	})
}

// UnsubscribeList drops one list subscription; the final drop detaches the
// connection. Unsubscribing while not subscribed is a conflict.
func (r *Registry) UnsubscribeList(conn *transport.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.listSubs[conn]
	if !ok || n == 0 {
		return wire.Conflictf("not subscribed to the lobby list")
	}
	n--
	if n == 0 {
		delete(r.listSubs, conn)
		r.bus.UnsubscribeClient(conn, ListPath)
	} else {
		r.listSubs[conn] = n
	}
	return nil
}

// HandleDisconnect cleans up everything a closed connection was attached to.
func (r *Registry) HandleDisconnect(conn *transport.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, subbed := r.listSubs[conn]; subbed {
		delete(r.listSubs, conn)
		r.bus.UnsubscribeClient(conn, ListPath)
	}
	name, in := r.clients[conn.ClientID]
	if !in {
		return
	}
	if member := r.members[name][conn.ClientID]; member != nil {
		if err := r.removeUser(name, member, lobby.DiffContext{}); err != nil {
			r.log.Warnf("disconnect cleanup for %s in %q: %v", conn.UserName, name, err)
		}
	}
}

// ListLobbies returns the public list entries, sorted by name.
func (r *Registry) ListLobbies() []wire.LobbySummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listSnapshot()
}

// GetLobby returns the current immutable snapshot of a lobby.
func (r *Registry) GetLobby(name string) (*lobby.Lobby, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[name]
	return l, ok
}

// --- internals; all assume r.mu is held ---

// mutate runs the standard command pipeline: resolve lobby, role and
// transient checks, apply the transition, commit + diff + publish.
func (r *Registry) mutate(s *Session, requireHost bool,
	fn func(name string, old *lobby.Lobby) (lobby.Lobby, lobby.DiffContext, error)) error {

	if err := authorize(s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.clients[s.ClientID]
	if !ok {
		return wire.BadRequestf("must be in a lobby")
	}
	if r.transient(name) {
		return wire.Conflictf("lobby is starting a game")
	}
	old := r.lobbies[name]
	if requireHost {
		if err := r.requireHost(old, s); err != nil {
			return err
		}
	}

	updated, hints, err := fn(name, old)
	if err != nil {
		if _, isWire := err.(*wire.Error); isWire {
			return err
		}
		return wire.BadRequestf("%v", err)
	}
	r.commit(name, old, &updated, hints)
	return nil
}

func (r *Registry) requireHost(l *lobby.Lobby, s *Session) error {
	host, ok := l.HostSlot()
	if !ok || host.UserID != s.UserID {
		return wire.Unauthorizedf("only the host can do that")
	}
	return nil
}

func (r *Registry) transient(name string) bool {
	return r.countdowns[name] != nil || r.loading[name]
}

// commit installs the new snapshot, publishes the diff to the lobby channel,
// and refreshes the public list entry. Returns the committed snapshot.
func (r *Registry) commit(name string, old, updated *lobby.Lobby, hints lobby.DiffContext) *lobby.Lobby {
	r.lobbies[name] = updated
	events := lobby.Diff(old, updated, hints)
	if len(events) > 0 {
		r.bus.Publish(LobbyPath(name), &wire.Diff{Type: wire.MsgDiff, DiffEvents: events})
	}
	if !r.transient(name) {
		r.publishList("update", updated)
	}
	return updated
}

func (r *Registry) subscribeMember(name string, s *Session, snap *lobby.Lobby) {
	r.bus.SubscribeClient(s.Conn, LobbyPath(name), func() interface{} {
		return &wire.Init{Type: wire.MsgInit, Lobby: snap}
	})
	summary := summarize(snap)
	r.bus.SubscribeClient(s.Conn, UserPath(name, s.UserName), func() interface{} {
		return &wire.Status{Type: wire.MsgStatus, Lobby: summary}
	})
	r.bus.SubscribeClient(s.Conn, ClientPath(name, s.UserID, s.ClientID), nil)
}

func (r *Registry) unsubscribeMember(name string, s *Session) {
	r.bus.UnsubscribeClient(s.Conn, LobbyPath(name))
	r.bus.UnsubscribeClient(s.Conn, UserPath(name, s.UserName))
	r.bus.UnsubscribeClient(s.Conn, ClientPath(name, s.UserID, s.ClientID))
}

func (r *Registry) memberByUser(name string, userID uuid.UUID) *Session {
	for _, m := range r.members[name] {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

func (r *Registry) listSnapshot() []wire.LobbySummary {
	names := make([]string, 0, len(r.lobbies))
	for name := range r.lobbies {
		if !r.transient(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]wire.LobbySummary, 0, len(names))
	for _, name := range names {
		out = append(out, *summarize(r.lobbies[name]))
	}
	return out
}

func (r *Registry) publishList(action string, l *lobby.Lobby) {
	r.bus.Publish(ListPath, &wire.ListUpdate{Action: action, Payload: summarize(l), Name: l.Name})
}

func summarize(l *lobby.Lobby) *wire.LobbySummary {
	hostName := ""
	if host, ok := l.HostSlot(); ok {
		hostName = host.Name
	}
	open, total := 0, 0
	for _, t := range l.Teams {
		if t.IsObserver {
			continue
		}
		total += t.OriginalSize
		for _, s := range t.Slots {
			if s.OpenForJoin() {
				open++
			}
		}
	}
	return &wire.LobbySummary{
		Name:       l.Name,
		MapName:    l.Map.Name,
		GameType:   l.GameType,
		HostName:   hostName,
		OpenSlots:  open,
		TotalSlots: total,
	}
}

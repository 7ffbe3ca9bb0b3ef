// Package world holds the authoritative simulation state. Everything in it
// is mutated only by action execution and the per-tick simulation step, in
// lockstep order, so two peers fed the same action stream stay bit-identical.
package world

import (
	"sort"

	"github.com/gridsim/server/internal/core/event"
)

type PlayerID uint16

type UnitID uint32

// SystemOrigin marks actions dispatched by the simulation itself (lobby
// countdown, console on a host) rather than by a connected player.
const SystemOrigin PlayerID = 0

// Substate is the match phase. Lobby and Running are mutually exclusive:
// the calendar and movement step run only while Running.
type Substate uint8

const (
	SubstateLobby Substate = iota
	SubstateRunning
)

func (s Substate) String() string {
	switch s {
	case SubstateLobby:
		return "lobby"
	case SubstateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Standing-order bits a unit can carry. The catalog restricts which bits
// each unit kind accepts.
const (
	OrderHold   uint8 = 1 << 0 // stay put, ignore patrol wandering
	OrderPatrol uint8 = 1 << 1 // wander randomly when idle
)

// OrderMaskAll is the universe of valid order bits.
const OrderMaskAll = OrderHold | OrderPatrol

// ChatMaxLen caps chat messages after NFC normalisation. A protocol
// constant rather than config: peers must agree on action verdicts.
const ChatMaxLen = 256

// Player is a participant in the match. Pure data: the session that speaks
// for a player lives in the network layer.
type Player struct {
	ID    PlayerID
	Name  string
	Admin bool
}

// Unit is a simulated entity on the grid.
type Unit struct {
	ID               UnitID
	Kind             uint16
	Owner            PlayerID
	X, Y             int32
	TargetX, TargetY int32
	HasTarget        bool
	Orders           uint8

	// Render interpolation state, written by the tweener. Display-only:
	// never checksummed, never serialised.
	RenderX, RenderY float64
}

// Date is the simulation calendar.
type Date struct {
	Day       uint32
	TickOfDay uint32
}

// Params seeds a new world. Locally they come from config; on a lockstep
// follower they arrive verbatim in the welcome payload so that both peers
// evolve from the same constants.
type Params struct {
	Seed        uint64 // raw RNG state, not necessarily the original seed
	Tick        uint64
	Funds       int64
	Paused      bool
	Substate    Substate
	Cheats      bool
	GridW       int32
	GridH       int32
	MaxUnits    int32
	TicksPerDay uint32
	DailyGrant  int64
	Date        Date
}

// State is the complete simulation state.
// Accessed only from the game loop goroutine — no locks needed.
type State struct {
	Tick        uint64
	Paused      bool
	Substate    Substate
	Funds       int64
	Date        Date
	Cheats      bool
	GridW       int32
	GridH       int32
	MaxUnits    int32
	TicksPerDay uint32
	DailyGrant  int64

	RNG RNG

	// Catalog is the static unit table, assigned once after load.
	Catalog Catalog

	// Events carries simulation events to subscribers (script hooks,
	// logging). Emitted events are not part of the checksummed state.
	Events *event.Bus

	// Chat is the display-only message ring.
	Chat *ChatLog

	players      map[PlayerID]*Player
	units        map[UnitID]*Unit
	nextUnit     UnitID
	destroyQueue []UnitID
}

func NewState(p Params) *State {
	return &State{
		Tick:        p.Tick,
		Paused:      p.Paused,
		Substate:    p.Substate,
		Funds:       p.Funds,
		Date:        p.Date,
		Cheats:      p.Cheats,
		GridW:       p.GridW,
		GridH:       p.GridH,
		MaxUnits:    p.MaxUnits,
		TicksPerDay: p.TicksPerDay,
		DailyGrant:  p.DailyGrant,
		RNG:         NewRNG(p.Seed),
		Events:      event.NewBus(),
		Chat:        NewChatLog(defaultChatKeep),
		players:     make(map[PlayerID]*Player),
		units:       make(map[UnitID]*Unit),
		nextUnit:    1,
	}
}

// InBounds reports whether a grid cell lies on the map.
func (s *State) InBounds(x, y int32) bool {
	return x >= 0 && y >= 0 && x < s.GridW && y < s.GridH
}

// Player returns the player with the given id, or nil.
func (s *State) Player(id PlayerID) *Player {
	return s.players[id]
}

// PlayerByName returns the player with the given name, or nil.
func (s *State) PlayerByName(name string) *Player {
	for _, p := range s.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *State) PlayerCount() int {
	return len(s.players)
}

// AddPlayer inserts a player. The id is allocated by the host at admission
// and travels inside the join action, so followers insert the same id.
func (s *State) AddPlayer(id PlayerID, name string, admin bool) *Player {
	p := &Player{ID: id, Name: name, Admin: admin}
	s.players[id] = p
	return p
}

func (s *State) RemovePlayer(id PlayerID) {
	delete(s.players, id)
}

// PlayersOrdered returns players sorted by id: the canonical iteration
// order for checksums and rosters.
func (s *State) PlayersOrdered() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Unit returns the unit with the given id, or nil.
func (s *State) Unit(id UnitID) *Unit {
	return s.units[id]
}

func (s *State) UnitCount() int {
	return len(s.units)
}

// AddUnit allocates the next sequential id and inserts the unit. Only
// action execution may call this; allocation order is part of determinism.
func (s *State) AddUnit(kind uint16, owner PlayerID, x, y int32) *Unit {
	u := &Unit{
		ID:      s.nextUnit,
		Kind:    kind,
		Owner:   owner,
		X:       x,
		Y:       y,
		RenderX: float64(x),
		RenderY: float64(y),
	}
	s.nextUnit++
	s.units[u.ID] = u
	return u
}

// UnitsOrdered returns units sorted by id: the canonical iteration order
// for the movement step and checksums.
func (s *State) UnitsOrdered() []*Unit {
	out := make([]*Unit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UnitsOwnedBy returns the ids of all units owned by a player, sorted.
func (s *State) UnitsOwnedBy(owner PlayerID) []UnitID {
	var out []UnitID
	for id, u := range s.units {
		if u.Owner == owner {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MarkForDestruction queues a unit for removal at the tick's cleanup phase.
// The unit stays visible (and checksummed) until then.
func (s *State) MarkForDestruction(id UnitID) {
	s.destroyQueue = append(s.destroyQueue, id)
}

// FlushDestroyQueue removes queued units and returns how many were removed.
func (s *State) FlushDestroyQueue() int {
	if len(s.destroyQueue) == 0 {
		return 0
	}
	removed := 0
	for _, id := range s.destroyQueue {
		if _, ok := s.units[id]; ok {
			delete(s.units, id)
			removed++
		}
	}
	s.destroyQueue = s.destroyQueue[:0]
	return removed
}

// AdvanceDate moves the calendar one tick and reports whether a new day
// started.
func (s *State) AdvanceDate() bool {
	s.Date.TickOfDay++
	if s.TicksPerDay > 0 && s.Date.TickOfDay >= s.TicksPerDay {
		s.Date.Day++
		s.Date.TickOfDay = 0
		return true
	}
	return false
}

// Snapshot returns the parameters a follower needs to reconstruct this
// state exactly, used to build the welcome payload during the lobby.
func (s *State) Snapshot() Params {
	return Params{
		Seed:        s.RNG.State(),
		Tick:        s.Tick,
		Funds:       s.Funds,
		Paused:      s.Paused,
		Substate:    s.Substate,
		Cheats:      s.Cheats,
		GridW:       s.GridW,
		GridH:       s.GridH,
		MaxUnits:    s.MaxUnits,
		TicksPerDay: s.TicksPerDay,
		DailyGrant:  s.DailyGrant,
		Date:        s.Date,
	}
}

// Package action implements the commands through which every game state
// mutation flows. An action is queried (validated against current state,
// side-effect free) before it executes; a failed query means no execution
// and an untouched world. Actions serialise byte-identically on every peer,
// which is what lets a host replicate them and a journal replay them.
package action

import (
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// Kind discriminates action variants on the wire and in the journal.
// Values are part of the protocol: never reuse or renumber.
type Kind uint16

const (
	KindPlayerJoin  Kind = 1
	KindPlayerLeave Kind = 2
	KindMatchStart  Kind = 3
	KindPauseToggle Kind = 4
	KindUnitSpawn   Kind = 5
	KindUnitOrders  Kind = 6
	KindUnitMove    Kind = 7
	KindChat        Kind = 8
	KindCheat       Kind = 9
)

// Flags describe how the dispatcher treats an action.
type Flags uint8

const (
	// AllowWhilePaused lets the action through the dispatcher's pause
	// gate. Everything else is refused while the simulation is paused.
	AllowWhilePaused Flags = 1 << 0
	// ClientOnly actions apply locally and are never replicated or
	// journaled. They must not touch checksummed state.
	ClientOnly Flags = 1 << 1
	// NoJournal keeps the action out of the replay journal. Only safe
	// for actions whose effects stay outside the checksummed state.
	NoJournal Flags = 1 << 2
)

// Action is one deterministic game command.
type Action interface {
	Kind() Kind
	Flags() Flags

	// Query validates the action against current state without mutating
	// anything. It must be idempotent: the dispatcher may re-query a
	// deferred action at a later tick.
	Query(st *world.State, origin world.PlayerID) Result

	// Execute applies the action. The dispatcher only calls it after a
	// successful Query in the same step.
	Execute(st *world.State, origin world.PlayerID) Result

	// Serialise appends the payload fields (not the kind) to w.
	Serialise(w *wire.Writer)

	// Deserialise reads the payload fields back. A truncated payload
	// returns an error and the action must not be used.
	Deserialise(r *wire.Reader) error
}

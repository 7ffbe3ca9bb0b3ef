package action

import (
	"github.com/gridsim/server/internal/core/event"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// MatchStart leaves the lobby and starts the simulation step. Dispatched by
// the lobby countdown on the deciding peer and replicated to followers.
type MatchStart struct{}

func (a *MatchStart) Kind() Kind   { return KindMatchStart }
func (a *MatchStart) Flags() Flags { return AllowWhilePaused }

func (a *MatchStart) Query(st *world.State, origin world.PlayerID) Result {
	if origin != world.SystemOrigin {
		return Fail(ErrPermission, "match start is host-initiated")
	}
	if st.Substate != world.SubstateLobby {
		return Fail(ErrWrongPhase, "match already started")
	}
	if st.PlayerCount() == 0 {
		return Fail(ErrInvalidArgument, "empty lobby")
	}
	return OK()
}

func (a *MatchStart) Execute(st *world.State, origin world.PlayerID) Result {
	st.Substate = world.SubstateRunning
	event.Emit(st.Events, event.MatchStarted{Tick: st.Tick})
	return OK()
}

func (a *MatchStart) Serialise(w *wire.Writer) {}

func (a *MatchStart) Deserialise(r *wire.Reader) error {
	return r.Err()
}

// PauseToggle flips the simulation pause flag. Pausing stops the calendar
// and movement step, not the tick loop itself.
type PauseToggle struct{}

func (a *PauseToggle) Kind() Kind   { return KindPauseToggle }
func (a *PauseToggle) Flags() Flags { return AllowWhilePaused }

func (a *PauseToggle) Query(st *world.State, origin world.PlayerID) Result {
	if origin != world.SystemOrigin && st.Player(origin) == nil {
		return Fail(ErrPermission, "unknown origin")
	}
	return OK()
}

func (a *PauseToggle) Execute(st *world.State, origin world.PlayerID) Result {
	st.Paused = !st.Paused
	event.Emit(st.Events, event.PauseChanged{Paused: st.Paused})
	return OK()
}

func (a *PauseToggle) Serialise(w *wire.Writer) {}

func (a *PauseToggle) Deserialise(r *wire.Reader) error {
	return r.Err()
}

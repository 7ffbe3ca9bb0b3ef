package action

import (
	"strings"

	"github.com/gridsim/server/internal/core/event"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// maxPlayerName bounds names after trimming. Part of the protocol: peers
// must agree on join verdicts.
const maxPlayerName = 32

// PlayerJoin adds a player to the match. Only the simulation itself may
// dispatch it: the host allocates the id at admission and replicates the
// action, so followers insert the same player under the same id.
type PlayerJoin struct {
	ID    world.PlayerID
	Name  string
	Admin bool
}

func (a *PlayerJoin) Kind() Kind   { return KindPlayerJoin }
func (a *PlayerJoin) Flags() Flags { return AllowWhilePaused }

func (a *PlayerJoin) Query(st *world.State, origin world.PlayerID) Result {
	if origin != world.SystemOrigin {
		return Fail(ErrPermission, "joins are host-initiated")
	}
	if st.Substate != world.SubstateLobby {
		return Fail(ErrWrongPhase, "match already started")
	}
	if a.ID == world.SystemOrigin {
		return Fail(ErrInvalidArgument, "player id 0 is reserved")
	}
	if st.Player(a.ID) != nil {
		return Fail(ErrInvalidArgument, "player id taken")
	}
	name := strings.TrimSpace(a.Name)
	if name == "" || len(name) > maxPlayerName {
		return Fail(ErrInvalidArgument, "bad player name")
	}
	if st.PlayerByName(name) != nil {
		return Fail(ErrInvalidArgument, "player name taken")
	}
	return OK()
}

func (a *PlayerJoin) Execute(st *world.State, origin world.PlayerID) Result {
	st.AddPlayer(a.ID, strings.TrimSpace(a.Name), a.Admin)
	event.Emit(st.Events, event.PlayerJoined{PlayerID: uint16(a.ID), Name: a.Name})
	return OK()
}

func (a *PlayerJoin) Serialise(w *wire.Writer) {
	w.WriteH(uint16(a.ID))
	w.WriteS(a.Name)
	if a.Admin {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
}

func (a *PlayerJoin) Deserialise(r *wire.Reader) error {
	a.ID = world.PlayerID(r.ReadH())
	a.Name = r.ReadS()
	a.Admin = r.ReadC() == 1
	return r.Err()
}

// PlayerLeave removes a player and queues their units for destruction.
// Dispatched by the simulation when a session drops, or by the player
// themselves.
type PlayerLeave struct {
	ID world.PlayerID
}

func (a *PlayerLeave) Kind() Kind   { return KindPlayerLeave }
func (a *PlayerLeave) Flags() Flags { return AllowWhilePaused }

func (a *PlayerLeave) Query(st *world.State, origin world.PlayerID) Result {
	if origin != world.SystemOrigin && origin != a.ID {
		return Fail(ErrPermission, "cannot remove another player")
	}
	if st.Player(a.ID) == nil {
		return Fail(ErrTargetNotFound, "no such player")
	}
	return OK()
}

func (a *PlayerLeave) Execute(st *world.State, origin world.PlayerID) Result {
	p := st.Player(a.ID)
	for _, id := range st.UnitsOwnedBy(a.ID) {
		st.MarkForDestruction(id)
		event.Emit(st.Events, event.UnitRemoved{UnitID: uint32(id), Owner: uint16(a.ID)})
	}
	st.RemovePlayer(a.ID)
	event.Emit(st.Events, event.PlayerLeft{PlayerID: uint16(a.ID), Name: p.Name})
	return OK()
}

func (a *PlayerLeave) Serialise(w *wire.Writer) {
	w.WriteH(uint16(a.ID))
}

func (a *PlayerLeave) Deserialise(r *wire.Reader) error {
	a.ID = world.PlayerID(r.ReadH())
	return r.Err()
}

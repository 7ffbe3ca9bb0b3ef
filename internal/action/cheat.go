package action

import (
	"github.com/gridsim/server/internal/core/event"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// Cheat codes. Value is interpreted per cheat.
const (
	CheatGrantFunds  uint8 = 1 // add Value to the treasury (may be negative)
	CheatAdvanceDays uint8 = 2 // advance the calendar by Value days
	CheatRemoveUnit  uint8 = 3 // queue unit id Value for destruction
)

// maxCheatDays bounds CheatAdvanceDays so a typo cannot fast-forward the
// calendar past anything meaningful.
const maxCheatDays = 365

// Cheat applies an admin-only state tweak. Cheats mutate checksummed state,
// so they replicate and journal like any other action; the gate is that the
// world has cheats enabled and the origin is an admin.
type Cheat struct {
	Cheat uint8
	Value int64
}

func (a *Cheat) Kind() Kind   { return KindCheat }
func (a *Cheat) Flags() Flags { return AllowWhilePaused }

func (a *Cheat) Query(st *world.State, origin world.PlayerID) Result {
	if !st.Cheats {
		return Fail(ErrPermission, "cheats disabled")
	}
	if origin != world.SystemOrigin {
		p := st.Player(origin)
		if p == nil || !p.Admin {
			return Fail(ErrPermission, "admin only")
		}
	}
	switch a.Cheat {
	case CheatGrantFunds:
		if st.Funds+a.Value < 0 {
			return Fail(ErrInvalidArgument, "treasury cannot go negative")
		}
	case CheatAdvanceDays:
		if a.Value < 1 || a.Value > maxCheatDays {
			return Fail(ErrInvalidArgument, "days out of range")
		}
	case CheatRemoveUnit:
		if st.Unit(world.UnitID(a.Value)) == nil {
			return Fail(ErrTargetNotFound, "no such unit")
		}
	default:
		return Fail(ErrInvalidArgument, "unknown cheat")
	}
	return OK()
}

func (a *Cheat) Execute(st *world.State, origin world.PlayerID) Result {
	switch a.Cheat {
	case CheatGrantFunds:
		st.Funds += a.Value
	case CheatAdvanceDays:
		st.Date.Day += uint32(a.Value)
	case CheatRemoveUnit:
		id := world.UnitID(a.Value)
		owner := st.Unit(id).Owner
		st.MarkForDestruction(id)
		event.Emit(st.Events, event.UnitRemoved{UnitID: uint32(id), Owner: uint16(owner)})
	}
	event.Emit(st.Events, event.CheatApplied{PlayerID: uint16(origin), Cheat: a.Cheat, Value: a.Value})
	return OK()
}

func (a *Cheat) Serialise(w *wire.Writer) {
	w.WriteC(a.Cheat)
	w.WriteQS(a.Value)
}

func (a *Cheat) Deserialise(r *wire.Reader) error {
	a.Cheat = r.ReadC()
	a.Value = r.ReadQS()
	return r.Err()
}

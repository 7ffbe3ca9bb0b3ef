package action

import (
	"github.com/gridsim/server/internal/core/event"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// UnitSpawn buys a unit of a catalog kind and places it on the grid. The
// unit id is allocated in Execute only; a query must never burn an id.
type UnitSpawn struct {
	UnitKind uint16
	X, Y     int32
}

func (a *UnitSpawn) Kind() Kind   { return KindUnitSpawn }
func (a *UnitSpawn) Flags() Flags { return 0 }

func (a *UnitSpawn) Query(st *world.State, origin world.PlayerID) Result {
	if st.Substate != world.SubstateRunning {
		return Fail(ErrWrongPhase, "match not started")
	}
	if origin != world.SystemOrigin && st.Player(origin) == nil {
		return Fail(ErrPermission, "unknown origin")
	}
	if !st.Catalog.HasUnitKind(a.UnitKind) {
		return Fail(ErrInvalidArgument, "unknown unit kind")
	}
	if !st.InBounds(a.X, a.Y) {
		return Fail(ErrInvalidArgument, "cell outside the grid")
	}
	if int32(st.UnitCount()) >= st.MaxUnits {
		return Fail(ErrCapacity, "unit limit reached")
	}
	cost := st.Catalog.UnitCost(a.UnitKind)
	if st.Funds < cost {
		return Fail(ErrFunds, "cannot afford unit")
	}
	return OKCost(cost)
}

func (a *UnitSpawn) Execute(st *world.State, origin world.PlayerID) Result {
	cost := st.Catalog.UnitCost(a.UnitKind)
	st.Funds -= cost
	u := st.AddUnit(a.UnitKind, origin, a.X, a.Y)
	event.Emit(st.Events, event.UnitSpawned{
		UnitID: uint32(u.ID),
		Kind:   a.UnitKind,
		Owner:  uint16(origin),
		X:      a.X,
		Y:      a.Y,
	})
	return OKCost(cost)
}

func (a *UnitSpawn) Serialise(w *wire.Writer) {
	w.WriteH(a.UnitKind)
	w.WriteD(a.X)
	w.WriteD(a.Y)
}

func (a *UnitSpawn) Deserialise(r *wire.Reader) error {
	a.UnitKind = r.ReadH()
	a.X = r.ReadD()
	a.Y = r.ReadD()
	return r.Err()
}

// UnitOrders replaces a unit's standing orders with a new mask. The catalog
// restricts which bits each kind accepts.
type UnitOrders struct {
	Unit   world.UnitID
	Orders uint8
}

func (a *UnitOrders) Kind() Kind   { return KindUnitOrders }
func (a *UnitOrders) Flags() Flags { return 0 }

func (a *UnitOrders) Query(st *world.State, origin world.PlayerID) Result {
	if st.Substate != world.SubstateRunning {
		return Fail(ErrWrongPhase, "match not started")
	}
	u := st.Unit(a.Unit)
	if u == nil {
		return Fail(ErrTargetNotFound, "no such unit")
	}
	if origin != world.SystemOrigin && u.Owner != origin {
		return Fail(ErrPermission, "not your unit")
	}
	allowed := st.Catalog.UnitOrdersMask(u.Kind)
	if a.Orders&^allowed != 0 {
		return Fail(ErrInvalidArgument, "orders not supported by this unit")
	}
	return OK()
}

func (a *UnitOrders) Execute(st *world.State, origin world.PlayerID) Result {
	u := st.Unit(a.Unit)
	u.Orders = a.Orders
	if u.Orders&world.OrderHold != 0 {
		u.HasTarget = false
	}
	event.Emit(st.Events, event.UnitOrdersChanged{UnitID: uint32(a.Unit), Orders: a.Orders})
	return OK()
}

func (a *UnitOrders) Serialise(w *wire.Writer) {
	w.WriteDU(uint32(a.Unit))
	w.WriteC(a.Orders)
}

func (a *UnitOrders) Deserialise(r *wire.Reader) error {
	a.Unit = world.UnitID(r.ReadDU())
	a.Orders = r.ReadC()
	return r.Err()
}

// UnitMove gives a unit an explicit movement target. An explicit target
// overrides a hold order until reached.
type UnitMove struct {
	Unit world.UnitID
	X, Y int32
}

func (a *UnitMove) Kind() Kind   { return KindUnitMove }
func (a *UnitMove) Flags() Flags { return 0 }

func (a *UnitMove) Query(st *world.State, origin world.PlayerID) Result {
	if st.Substate != world.SubstateRunning {
		return Fail(ErrWrongPhase, "match not started")
	}
	u := st.Unit(a.Unit)
	if u == nil {
		return Fail(ErrTargetNotFound, "no such unit")
	}
	if origin != world.SystemOrigin && u.Owner != origin {
		return Fail(ErrPermission, "not your unit")
	}
	if !st.InBounds(a.X, a.Y) {
		return Fail(ErrInvalidArgument, "cell outside the grid")
	}
	return OK()
}

func (a *UnitMove) Execute(st *world.State, origin world.PlayerID) Result {
	u := st.Unit(a.Unit)
	u.TargetX = a.X
	u.TargetY = a.Y
	u.HasTarget = true
	return OK()
}

func (a *UnitMove) Serialise(w *wire.Writer) {
	w.WriteDU(uint32(a.Unit))
	w.WriteD(a.X)
	w.WriteD(a.Y)
}

func (a *UnitMove) Deserialise(r *wire.Reader) error {
	a.Unit = world.UnitID(r.ReadDU())
	a.X = r.ReadD()
	a.Y = r.ReadD()
	return r.Err()
}

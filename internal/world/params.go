package world

import "github.com/gridsim/server/internal/net/wire"

// Encode appends the parameter block to a payload. The layout pairs with
// DecodeParams; both sides of a welcome handshake must agree on it.
func (p Params) Encode(w *wire.Writer) {
	w.WriteQ(p.Seed)
	w.WriteQ(p.Tick)
	w.WriteQS(p.Funds)
	w.WriteC(boolByte(p.Paused))
	w.WriteC(byte(p.Substate))
	w.WriteC(boolByte(p.Cheats))
	w.WriteD(p.GridW)
	w.WriteD(p.GridH)
	w.WriteD(p.MaxUnits)
	w.WriteDU(p.TicksPerDay)
	w.WriteQS(p.DailyGrant)
	w.WriteDU(p.Date.Day)
	w.WriteDU(p.Date.TickOfDay)
}

// DecodeParams reads a parameter block back.
func DecodeParams(r *wire.Reader) (Params, error) {
	p := Params{
		Seed:  r.ReadQ(),
		Tick:  r.ReadQ(),
		Funds: r.ReadQS(),
	}
	p.Paused = r.ReadC() != 0
	p.Substate = Substate(r.ReadC())
	p.Cheats = r.ReadC() != 0
	p.GridW = r.ReadD()
	p.GridH = r.ReadD()
	p.MaxUnits = r.ReadD()
	p.TicksPerDay = r.ReadDU()
	p.DailyGrant = r.ReadQS()
	p.Date.Day = r.ReadDU()
	p.Date.TickOfDay = r.ReadDU()
	return p, r.Err()
}

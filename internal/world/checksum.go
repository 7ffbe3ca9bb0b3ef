package world

import (
	"golang.org/x/crypto/blake2b"

	"github.com/gridsim/server/internal/net/wire"
)

// Checksum returns the BLAKE2b-256 digest of the canonical state encoding.
// Peers in lockstep must produce identical digests after every tick, so the
// encoding iterates maps in sorted-id order and covers every field the
// simulation reads. Render positions and the chat ring are display-only and
// excluded.
func (s *State) Checksum() [32]byte {
	w := wire.NewWriter()

	w.WriteQ(s.Tick)
	w.WriteC(boolByte(s.Paused))
	w.WriteC(byte(s.Substate))
	w.WriteC(boolByte(s.Cheats))
	w.WriteQS(s.Funds)
	w.WriteDU(s.Date.Day)
	w.WriteDU(s.Date.TickOfDay)
	w.WriteD(s.GridW)
	w.WriteD(s.GridH)
	w.WriteD(s.MaxUnits)
	w.WriteDU(s.TicksPerDay)
	w.WriteQS(s.DailyGrant)
	w.WriteQ(s.RNG.State())

	players := s.PlayersOrdered()
	w.WriteH(uint16(len(players)))
	for _, p := range players {
		w.WriteH(uint16(p.ID))
		w.WriteS(p.Name)
		w.WriteC(boolByte(p.Admin))
	}

	units := s.UnitsOrdered()
	w.WriteDU(uint32(len(units)))
	for _, u := range units {
		w.WriteDU(uint32(u.ID))
		w.WriteH(u.Kind)
		w.WriteH(uint16(u.Owner))
		w.WriteD(u.X)
		w.WriteD(u.Y)
		w.WriteD(u.TargetX)
		w.WriteD(u.TargetY)
		w.WriteC(boolByte(u.HasTarget))
		w.WriteC(u.Orders)
	}

	w.WriteDU(uint32(s.nextUnit))

	// Pending destroys are still state: a peer that already flushed them
	// would otherwise hash equal.
	w.WriteDU(uint32(len(s.destroyQueue)))
	for _, id := range s.destroyQueue {
		w.WriteDU(uint32(id))
	}

	return blake2b.Sum256(w.Bytes())
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

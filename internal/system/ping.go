package system

import (
	"time"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// PingSystem keeps a follower's host link warm. Phase 4 (Output). A
// paused or gated follower runs no ticks, but the scheduler still polls,
// so the host read timeout is instead held off by the regular tick beacon;
// the ping covers the reverse direction, where a follower with nothing to
// submit would otherwise go silent until the host's write side drops it.
type PingSystem struct {
	st       *world.State
	client   *net.Client
	interval uint64
}

func NewPingSystem(st *world.State, client *net.Client, interval uint64) *PingSystem {
	return &PingSystem{st: st, client: client, interval: interval}
}

func (s *PingSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *PingSystem) Update(_ time.Duration) {
	if s.interval == 0 || s.st.Tick%s.interval != 0 {
		return
	}
	w := wire.NewWriterWithOpcode(wire.C_PING)
	w.WriteQ(s.st.Tick)
	s.client.Send(w.Bytes())
}

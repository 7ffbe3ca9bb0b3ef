package system

import (
	"time"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/game"
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/world"
)

// OutputSystem ends a host's tick on the wire: it emits the tick beacon
// that lets followers run the matching tick, then flushes every session's
// buffered frames to its writer goroutine. Phase 4 (Output), last in
// phase — the beacon must follow everything else the tick queued, so a
// follower that sees beacon N already holds all of tick N's frames.
type OutputSystem struct {
	st    *world.State
	store *net.SessionStore
	host  *game.HostLink
}

func NewOutputSystem(st *world.State, store *net.SessionStore, host *game.HostLink) *OutputSystem {
	return &OutputSystem{st: st, store: store, host: host}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	s.host.BroadcastTick(s.st.Tick)
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

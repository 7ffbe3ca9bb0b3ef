package system

import (
	"bytes"
	"fmt"
	"time"

	"go.uber.org/zap"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/game"
)

// ChecksumSystem is the desync detector. Phase 4 (Output), after admission
// and before the tick beacon. A host digests its state every interval and
// broadcasts it; a follower compares the host's digest against its own
// state at the same tick and treats any difference as fatal — a diverged
// follower cannot be repaired incrementally, only disconnected.
type ChecksumSystem struct {
	ctx      *game.Context
	host     *game.HostLink // nil unless hosting
	interval uint64
	log      *zap.Logger
}

func NewChecksumSystem(ctx *game.Context, host *game.HostLink, interval uint64, log *zap.Logger) *ChecksumSystem {
	return &ChecksumSystem{ctx: ctx, host: host, interval: interval, log: log}
}

func (s *ChecksumSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *ChecksumSystem) Update(_ time.Duration) {
	st := s.ctx.World()

	if s.ctx.Mode() == dispatch.ModeClient {
		remote, ok := s.ctx.TakeRemoteChecksum(st.Tick)
		if !ok {
			return
		}
		local := st.Checksum()
		if !bytes.Equal(local[:], remote) {
			s.ctx.Fail(fmt.Errorf("state diverged from host at tick %d: local %x, host %x",
				st.Tick, local[:8], remote[:8]))
			return
		}
		s.log.Debug("校驗和一致", zap.Uint64("tick", st.Tick))
		return
	}

	if s.interval == 0 || st.Tick%s.interval != 0 {
		return
	}
	sum := st.Checksum()
	if s.host != nil {
		s.host.BroadcastChecksum(st.Tick, sum[:])
	}
	s.log.Debug("狀態校驗和",
		zap.Uint64("tick", st.Tick),
		zap.String("sum", fmt.Sprintf("%x", sum[:8])),
	)
}

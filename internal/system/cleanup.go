package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/world"
)

// CleanupSystem flushes the deferred unit destruction queue at tick end.
// Phase 6 (Cleanup). The queue is part of the checksummed state, so the
// flush must happen at the same phase on every peer.
type CleanupSystem struct {
	st  *world.State
	log *zap.Logger
}

func NewCleanupSystem(st *world.State, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{st: st, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if n := s.st.FlushDestroyQueue(); n > 0 {
		s.log.Debug("已移除單位", zap.Int("count", n))
	}
}

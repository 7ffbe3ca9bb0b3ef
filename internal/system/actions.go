package system

import (
	"time"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/game"
)

// ActionSystem runs the tick's action phase: staged and deferred local
// actions, then this tick's replicated bucket. Phase 2 (Update), first in
// phase — the calendar and movement step must see post-action state. A
// replicated action that no longer applies is a desync and stops the run.
type ActionSystem struct {
	ctx *game.Context
}

func NewActionSystem(ctx *game.Context) *ActionSystem {
	return &ActionSystem{ctx: ctx}
}

func (s *ActionSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ActionSystem) Update(_ time.Duration) {
	if err := s.ctx.Dispatcher().RunActionPhase(); err != nil {
		s.ctx.Fail(err)
	}
}

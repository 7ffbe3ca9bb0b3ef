package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/world"
)

// CalendarSystem advances the game date and pays the daily treasury grant.
// Phase 2 (Update), after the action phase. Skipped in the lobby and while
// paused: the calendar is simulation time, not wall time.
type CalendarSystem struct {
	st  *world.State
	log *zap.Logger
}

func NewCalendarSystem(st *world.State, log *zap.Logger) *CalendarSystem {
	return &CalendarSystem{st: st, log: log}
}

func (s *CalendarSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *CalendarSystem) Update(_ time.Duration) {
	if s.st.Substate != world.SubstateRunning || s.st.Paused {
		return
	}
	if s.st.AdvanceDate() {
		s.st.Funds += s.st.DailyGrant
		s.log.Debug("新的一天",
			zap.Uint32("day", s.st.Date.Day),
			zap.Int64("funds", s.st.Funds),
		)
	}
}

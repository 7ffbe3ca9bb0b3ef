package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/world"
)

// LobbySystem runs the pre-match countdown in place of the simulation
// step. Phase 1 (PreUpdate), deciding peer only (host or standalone):
// followers receive the resulting MatchStart through replication. Once
// enough players are connected it counts down and dispatches MatchStart;
// losing a needed player cancels the countdown.
type LobbySystem struct {
	st         *world.State
	disp       *dispatch.Dispatcher
	minPlayers int
	countdown  uint64
	left       uint64
	counting   bool
	log        *zap.Logger
}

func NewLobbySystem(st *world.State, disp *dispatch.Dispatcher, minPlayers int, countdown uint64, log *zap.Logger) *LobbySystem {
	if minPlayers < 1 {
		minPlayers = 1
	}
	return &LobbySystem{
		st:         st,
		disp:       disp,
		minPlayers: minPlayers,
		countdown:  countdown,
		log:        log,
	}
}

func (s *LobbySystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *LobbySystem) Update(_ time.Duration) {
	if s.st.Substate != world.SubstateLobby {
		s.counting = false
		return
	}
	if s.st.PlayerCount() < s.minPlayers {
		if s.counting {
			s.log.Info("等待室倒數取消：玩家不足",
				zap.Int("players", s.st.PlayerCount()),
				zap.Int("needed", s.minPlayers),
			)
		}
		s.counting = false
		return
	}
	if !s.counting {
		s.counting = true
		s.left = s.countdown
		s.log.Info("等待室倒數開始",
			zap.Int("players", s.st.PlayerCount()),
			zap.Uint64("ticks", s.left),
		)
	}
	if s.left > 0 {
		s.left--
		return
	}
	s.counting = false
	if res := s.disp.Enqueue(&action.MatchStart{}, world.SystemOrigin); res.Failed() {
		s.log.Warn("對局開始動作未通過", zap.String("result", res.String()))
	}
}

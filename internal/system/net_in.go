// Package system holds the phased systems one simulation tick is composed
// of. Registration order within a phase is part of the tick contract: the
// action phase precedes the calendar and movement step, admission precedes
// the tick beacon. Anything that must stay deterministic across peers runs
// in the update phase; the rest is housekeeping.
package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// NetInputSystem admits new connections into the session store and drains
// joined sessions' inbound frames through the wire registry. Phase 0
// (Input). Sessions still in the hello state are left queued for the
// admission system: a welcome snapshot taken before the action phase would
// miss this tick's broadcasts.
type NetInputSystem struct {
	server     *net.Server
	registry   *wire.Registry
	store      *net.SessionStore
	disp       *dispatch.Dispatcher
	maxPerTick int
	log        *zap.Logger
}

func NewNetInputSystem(
	server *net.Server,
	registry *wire.Registry,
	store *net.SessionStore,
	disp *dispatch.Dispatcher,
	maxPerTick int,
	log *zap.Logger,
) *NetInputSystem {
	return &NetInputSystem{
		server:     server,
		registry:   registry,
		store:      store,
		disp:       disp,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *NetInputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *NetInputSystem) Update(_ time.Duration) {
	// Accept new sessions.
	for {
		select {
		case sess := <-s.server.NewSessions():
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	for id, sess := range s.store.Raw() {
		if sess.IsClosed() {
			s.handleDisconnect(sess)
			s.server.NotifyDead(id)
			s.store.Remove(id)
			continue
		}
		if sess.State() != wire.StateJoined {
			continue
		}
	drain:
		for i := 0; i < s.maxPerTick; i++ {
			select {
			case data := <-sess.InQueue:
				if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
					s.log.Debug("訊框分派錯誤",
						zap.Uint64("session", sess.ID),
						zap.Error(err),
					)
				}
			default:
				break drain
			}
		}
	}

	// Drain the dead-session channel; everything on it was already removed
	// above or will be caught next tick via IsClosed.
	for {
		select {
		case <-s.server.DeadSessions():
		default:
			return
		}
	}
}

// handleDisconnect removes a dropped peer's player through the action
// pipeline, so every follower sees the leave at the same tick.
func (s *NetInputSystem) handleDisconnect(sess *net.Session) {
	if sess.PlayerID == 0 {
		s.log.Info("節點離線", zap.Uint64("session", sess.ID))
		return
	}
	s.log.Info("玩家離線",
		zap.Uint64("session", sess.ID),
		zap.Uint16("player", sess.PlayerID),
		zap.String("name", sess.PlayerName),
	)
	leave := &action.PlayerLeave{ID: world.PlayerID(sess.PlayerID)}
	if res := s.disp.Enqueue(leave, world.SystemOrigin); res.Failed() {
		// Already removed (explicit leave raced the disconnect); nothing
		// to do.
		s.log.Debug("離線移除未通過", zap.String("result", res.String()))
	}
}

package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
)

// AdmissionSystem drains hello-state sessions. Phase 4 (Output), before
// the tick beacon: the welcome snapshot must be post-action-phase state,
// otherwise a join admitted at the top of the tick would miss actions the
// host broadcasts later in the same tick and desync immediately.
type AdmissionSystem struct {
	registry   *wire.Registry
	store      *net.SessionStore
	maxPerTick int
	log        *zap.Logger
}

func NewAdmissionSystem(registry *wire.Registry, store *net.SessionStore, maxPerTick int, log *zap.Logger) *AdmissionSystem {
	return &AdmissionSystem{
		registry:   registry,
		store:      store,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *AdmissionSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *AdmissionSystem) Update(_ time.Duration) {
	for _, sess := range s.store.Raw() {
		if sess.IsClosed() || sess.State() != wire.StateHello {
			continue
		}
	drain:
		for i := 0; i < s.maxPerTick; i++ {
			select {
			case data := <-sess.InQueue:
				if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
					s.log.Debug("握手訊框分派錯誤",
						zap.Uint64("session", sess.ID),
						zap.Error(err),
					)
					sess.Close()
				}
			default:
				break drain
			}
			if sess.State() != wire.StateHello {
				break drain
			}
		}
	}
}

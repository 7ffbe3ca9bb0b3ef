package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/persist"
	"github.com/gridsim/server/internal/world"
)

// flushTimeout bounds the per-tick journal write. The simulation never
// waits longer than this on storage.
const flushTimeout = 3 * time.Second

// JournalSystem is the dispatcher's journal sink: executed actions buffer
// in memory and flush to the database once per tick in a single
// transaction. Phase 5 (Persist). A failed flush loses that tick's batch —
// the recording turns incomplete, but the simulation must not stall or
// die on storage.
type JournalSystem struct {
	repo  *persist.JournalRepo
	runID int64
	buf   []persist.ActionRow
	log   *zap.Logger
}

func NewJournalSystem(repo *persist.JournalRepo, runID int64, log *zap.Logger) *JournalSystem {
	return &JournalSystem{repo: repo, runID: runID, log: log}
}

// Record implements dispatch.Journal. Game loop goroutine only.
func (s *JournalSystem) Record(tick uint64, ord int, origin world.PlayerID, a action.Action) {
	s.buf = append(s.buf, persist.ActionRow{
		Tick:    tick,
		Ord:     int32(ord),
		Origin:  uint16(origin),
		Kind:    uint16(a.Kind()),
		Payload: action.EncodePayload(a),
	})
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) {
	s.Flush()
}

// Flush writes the buffered batch now. Also called once at shutdown, after
// the loop exits, so the final partial tick is not lost.
func (s *JournalSystem) Flush() {
	if len(s.buf) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := s.repo.AppendActions(ctx, s.runID, s.buf); err != nil {
		s.log.Error("日誌批次寫入失敗，該批已丟棄",
			zap.Int64("run", s.runID),
			zap.Int("actions", len(s.buf)),
			zap.Error(err),
		)
	}
	s.buf = s.buf[:0]
}

// RunID returns the database run this system records into.
func (s *JournalSystem) RunID() int64 {
	return s.runID
}

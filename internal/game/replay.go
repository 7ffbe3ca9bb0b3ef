package game

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/persist"
	"github.com/gridsim/server/internal/world"
)

// ReplayParams converts a recorded run's parameter columns into the world
// parameters of a fresh state. Runs are journaled from tick zero, so the
// replay starts in the lobby with an empty roster and lets the journaled
// joins rebuild it.
func ReplayParams(run *persist.RunRow) world.Params {
	return world.Params{
		Seed:        run.Seed,
		Funds:       run.InitialFunds,
		Substate:    world.SubstateLobby,
		Cheats:      run.Cheats,
		GridW:       run.GridW,
		GridH:       run.GridH,
		MaxUnits:    run.MaxUnits,
		TicksPerDay: run.TicksPerDay,
		DailyGrant:  run.DailyGrant,
	}
}

// LoadReplay decodes a run's journal into the dispatcher's replicated
// buckets and arms the playback bound. Call once, before Run, on a fresh
// playback context.
func (c *Context) LoadReplay(run *persist.RunRow, rows []persist.ActionRow) error {
	reg := c.disp.Registry()

	last := uint64(0)
	for _, row := range rows {
		a, err := reg.DecodePayload(action.Kind(row.Kind), row.Payload)
		if err != nil {
			return fmt.Errorf("journal row tick %d ord %d: %w", row.Tick, row.Ord, err)
		}
		if err := c.disp.EnqueueRemote(row.Tick, world.PlayerID(row.Origin), a); err != nil {
			return err
		}
		if row.Tick > last {
			last = row.Tick
		}
	}

	// A sealed run replays to its recorded end so the final checksum can be
	// verified; an unsealed one can only replay to its last journaled action.
	if run.Finished && run.FinalTick > 0 {
		c.playbackLast = run.FinalTick
		c.playbackSum = run.FinalChecksum
	} else {
		c.playbackLast = last
	}
	if c.playbackLast == 0 {
		return fmt.Errorf("run %d has an empty journal", run.ID)
	}

	c.log.Info("重播已載入",
		zap.Int64("run", run.ID),
		zap.Int("actions", len(rows)),
		zap.Uint64("final_tick", c.playbackLast),
	)
	return nil
}

// verifyPlayback compares the replayed state against the recorded final
// checksum. A mismatch means the simulation no longer reproduces the run:
// either the journal is damaged or the step logic changed under it.
func (c *Context) verifyPlayback() error {
	sum := c.st.Checksum()
	if len(c.playbackSum) == 0 {
		c.log.Warn("此紀錄沒有最終校驗和，無法驗證重播結果",
			zap.Uint64("tick", c.st.Tick),
		)
		return nil
	}
	if !bytes.Equal(sum[:], c.playbackSum) {
		return fmt.Errorf("replay diverged: tick %d checksum %x, recorded %x",
			c.st.Tick, sum[:8], c.playbackSum[:8])
	}
	c.log.Info("重播校驗通過", zap.Uint64("tick", c.st.Tick))
	return nil
}

package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RunRow describes one recorded simulation run. The parameter columns are
// everything a replay needs to reconstruct the starting world.
type RunRow struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    *time.Time
	Mode          string
	ServerName    string
	CatalogHash   []byte
	Seed          uint64
	InitialFunds  int64
	GridW         int32
	GridH         int32
	MaxUnits      int32
	TicksPerDay   uint32
	DailyGrant    int64
	Cheats        bool
	FinalTick     uint64
	FinalChecksum []byte
	Finished      bool
}

// ActionRow is one journaled action. (Tick, Ord) orders the replay.
type ActionRow struct {
	Tick    uint64
	Ord     int32
	Origin  uint16
	Kind    uint16
	Payload []byte
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// StartRun records a new run and returns its id.
func (r *JournalRepo) StartRun(ctx context.Context, row *RunRow) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO runs (mode, server_name, catalog_hash, seed, initial_funds,
		                   grid_w, grid_h, max_units, ticks_per_day, daily_grant, cheats)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		row.Mode, row.ServerName, row.CatalogHash, int64(row.Seed), row.InitialFunds,
		row.GridW, row.GridH, row.MaxUnits, int64(row.TicksPerDay), row.DailyGrant, row.Cheats,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

// AppendActions writes a batch of journal rows in a single transaction.
// If it fails the whole batch is lost; the caller decides whether that is
// fatal.
func (r *JournalRepo) AppendActions(ctx context.Context, runID int64, rows []ActionRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range rows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO run_actions (run_id, tick, ord, origin, kind, payload)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			runID, int64(a.Tick), a.Ord, int32(a.Origin), int32(a.Kind), a.Payload,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// FinishRun seals a run with its final tick and state checksum.
func (r *JournalRepo) FinishRun(ctx context.Context, runID int64, finalTick uint64, checksum []byte) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE runs
		 SET finished = TRUE, finished_at = NOW(), final_tick = $2, final_checksum = $3
		 WHERE id = $1`,
		runID, int64(finalTick), checksum,
	)
	return err
}

// Run loads one run's metadata. Returns nil when the run does not exist.
func (r *JournalRepo) Run(ctx context.Context, runID int64) (*RunRow, error) {
	row := &RunRow{}
	var seed, ticksPerDay, finalTick int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, started_at, finished_at, mode, server_name, catalog_hash,
		        seed, initial_funds, grid_w, grid_h, max_units, ticks_per_day,
		        daily_grant, cheats, final_tick, final_checksum, finished
		 FROM runs WHERE id = $1`, runID,
	).Scan(
		&row.ID, &row.StartedAt, &row.FinishedAt, &row.Mode, &row.ServerName, &row.CatalogHash,
		&seed, &row.InitialFunds, &row.GridW, &row.GridH, &row.MaxUnits, &ticksPerDay,
		&row.DailyGrant, &row.Cheats, &finalTick, &row.FinalChecksum, &row.Finished,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Seed = uint64(seed)
	row.TicksPerDay = uint32(ticksPerDay)
	row.FinalTick = uint64(finalTick)
	return row, nil
}

// Actions loads a run's full journal in replay order.
func (r *JournalRepo) Actions(ctx context.Context, runID int64) ([]ActionRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT tick, ord, origin, kind, payload
		 FROM run_actions WHERE run_id = $1
		 ORDER BY tick, ord`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionRow
	for rows.Next() {
		var a ActionRow
		var tick int64
		var origin, kind int32
		if err := rows.Scan(&tick, &a.Ord, &origin, &kind, &a.Payload); err != nil {
			return nil, err
		}
		a.Tick = uint64(tick)
		a.Origin = uint16(origin)
		a.Kind = uint16(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListRuns returns the most recent runs, newest first.
func (r *JournalRepo) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, started_at, finished_at, mode, server_name, catalog_hash,
		        seed, initial_funds, grid_w, grid_h, max_units, ticks_per_day,
		        daily_grant, cheats, final_tick, final_checksum, finished
		 FROM runs ORDER BY id DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var row RunRow
		var seed, ticksPerDay, finalTick int64
		if err := rows.Scan(
			&row.ID, &row.StartedAt, &row.FinishedAt, &row.Mode, &row.ServerName, &row.CatalogHash,
			&seed, &row.InitialFunds, &row.GridW, &row.GridH, &row.MaxUnits, &ticksPerDay,
			&row.DailyGrant, &row.Cheats, &finalTick, &row.FinalChecksum, &row.Finished,
		); err != nil {
			return nil, err
		}
		row.Seed = uint64(seed)
		row.TicksPerDay = uint32(ticksPerDay)
		row.FinalTick = uint64(finalTick)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ActionCount reports how many rows a run journaled. Diagnostic only.
func (r *JournalRepo) ActionCount(ctx context.Context, runID int64) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM run_actions WHERE run_id = $1`, runID,
	).Scan(&n)
	return n, err
}

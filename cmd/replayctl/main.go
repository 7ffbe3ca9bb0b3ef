// replayctl inspects recorded simulation runs in the journal database.
//
// Usage:
//
//	go run ./cmd/replayctl <command> [-config path] [-dsn url] [args]
//
// Commands:
//
//	list          — list recorded runs, newest first
//	show <run>    — print one run's parameters
//	export <run>  — dump a run's journaled actions as text
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/config"
	"github.com/gridsim/server/internal/persist"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		usage()
		return fmt.Errorf("missing command")
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "config/gridsim.toml", "config file to take the DSN from")
	dsn := fs.String("dsn", "", "database URL, overrides the config")
	limit := fs.Int("limit", 20, "how many runs to list")
	fs.Parse(os.Args[2:])

	dbCfg := config.Defaults().Database
	if cfg, err := config.Load(*cfgPath); err == nil {
		dbCfg = cfg.Database
	}
	dbCfg.Enabled = true
	if *dsn != "" {
		dbCfg.DSN = *dsn
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, dbCfg, zap.NewNop())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	repo := persist.NewJournalRepo(db)

	switch cmd {
	case "list":
		return listRuns(ctx, repo, *limit)
	case "show":
		id, err := runArg(fs)
		if err != nil {
			return err
		}
		return showRun(ctx, repo, id)
	case "export":
		id, err := runArg(fs)
		if err != nil {
			return err
		}
		return exportRun(ctx, repo, id)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: replayctl <list|show|export> [-config path] [-dsn url] [run]")
}

func runArg(fs *flag.FlagSet) (int64, error) {
	if fs.NArg() < 1 {
		return 0, fmt.Errorf("missing run id")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad run id %q", fs.Arg(0))
	}
	return id, nil
}

func listRuns(ctx context.Context, repo *persist.JournalRepo, limit int) error {
	runs, err := repo.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("沒有任何紀錄")
		return nil
	}
	fmt.Printf("%-6s  %-19s  %-10s  %-12s  %-10s  %s\n",
		"編號", "開始時間", "模式", "最終tick", "狀態", "伺服器")
	for _, r := range runs {
		status := "未封存"
		if r.Finished {
			status = "完成"
		}
		fmt.Printf("%-6d  %-19s  %-10s  %-12d  %-10s  %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Mode, r.FinalTick, status, r.ServerName)
	}
	return nil
}

func showRun(ctx context.Context, repo *persist.JournalRepo, id int64) error {
	r, err := repo.Run(ctx, id)
	if err != nil {
		return err
	}
	count, err := repo.ActionCount(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("紀錄 %d (%s)\n", r.ID, r.Mode)
	fmt.Printf("  伺服器:    %s\n", r.ServerName)
	fmt.Printf("  開始時間:  %s\n", r.StartedAt.Format(time.RFC3339))
	if r.FinishedAt != nil {
		fmt.Printf("  結束時間:  %s\n", r.FinishedAt.Format(time.RFC3339))
	}
	fmt.Printf("  種子:      %d\n", r.Seed)
	fmt.Printf("  地圖:      %dx%d  單位上限:%d\n", r.GridW, r.GridH, r.MaxUnits)
	fmt.Printf("  初始資金:  %d  每日補助:%d  日長:%d ticks\n", r.InitialFunds, r.DailyGrant, r.TicksPerDay)
	fmt.Printf("  作弊:      %v\n", r.Cheats)
	fmt.Printf("  目錄雜湊:  %x\n", r.CatalogHash)
	fmt.Printf("  動作數:    %d\n", count)
	if r.Finished {
		fmt.Printf("  最終tick:  %d\n", r.FinalTick)
		fmt.Printf("  最終校驗:  %x\n", r.FinalChecksum)
	} else {
		fmt.Println("  此紀錄未封存")
	}
	return nil
}

func exportRun(ctx context.Context, repo *persist.JournalRepo, id int64) error {
	rows, err := repo.Actions(ctx, id)
	if err != nil {
		return err
	}
	reg := action.NewRegistry()
	action.RegisterCore(reg)

	for _, row := range rows {
		name := reg.Name(action.Kind(row.Kind))
		fmt.Printf("tick %-8d ord %-3d origin %-4d %-14s %x\n",
			row.Tick, row.Ord, row.Origin, name, row.Payload)
	}
	fmt.Fprintf(os.Stderr, "共 %d 筆動作\n", len(rows))
	return nil
}

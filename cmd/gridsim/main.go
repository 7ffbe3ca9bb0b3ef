package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/config"
	"github.com/gridsim/server/internal/core/clock"
	"github.com/gridsim/server/internal/core/sched"
	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/data"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/game"
	"github.com/gridsim/server/internal/handler"
	gonet "github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/persist"
	"github.com/gridsim/server/internal/scripting"
	"github.com/gridsim/server/internal/system"
	"github.com/gridsim/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName, mode string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             gridsim  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      確定性格狀模擬 · Go 鎖步伺服器       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(模式: %s)\033[0m\n\n", serverName, mode)
}

func printSection(title string) {
	// Use rune count for CJK width calculation (each CJK char = 2 columns)
	displayWidth := 0
	for _, r := range title {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	lineLen := 46 - displayWidth - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	displayWidth := 0
	for _, r := range label {
		if r > 0x7F {
			displayWidth += 2
		} else {
			displayWidth++
		}
	}
	dotsLen := 42 - displayWidth - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/gridsim.toml"
	if p := os.Getenv("GRIDSIM_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	mode := parseMode(cfg.Server.Mode)

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.Mode)

	// 3. Load the unit catalog. Its hash is exchanged at every handshake.
	printSection("資料載入")

	units, err := data.LoadUnitTable("data/units.yaml")
	if err != nil {
		return fmt.Errorf("load unit catalog: %w", err)
	}
	catalogHash := units.Hash()
	printStat("單位種類", units.Count())

	// 4. Connect to PostgreSQL and run migrations (optional)
	var (
		db          *persist.DB
		journalRepo *persist.JournalRepo
	)
	if cfg.Database.Enabled {
		printSection("資料庫")

		bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err = persist.NewDB(bootCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功")

		if err := persist.RunMigrations(bootCtx, db.Pool); err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		cancel()
		printOK("資料庫遷移完成")
		journalRepo = persist.NewJournalRepo(db)
	}
	fmt.Println()

	// 5. Init Lua scripting engine
	eng, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer eng.Close()

	// 6. Action registry: every peer registers the same set.
	actions := action.NewRegistry()
	action.RegisterCore(actions)

	// 7. Resolve the starting world parameters for this mode. A deciding
	// peer seeds from config; a follower takes the host's snapshot verbatim;
	// playback takes the recorded run's columns.
	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
		log.Info("使用隨機種子", zap.Uint64("seed", seed))
	}

	var (
		params      world.Params
		client      *gonet.Client
		welcome     *handler.Welcome
		playbackRun *persist.RunRow
	)
	switch mode {
	case dispatch.ModeStandalone, dispatch.ModeHost:
		params = world.Params{
			Seed:        seed,
			Funds:       cfg.Sim.InitialFunds,
			Substate:    world.SubstateLobby,
			Cheats:      cfg.Server.Cheats,
			GridW:       cfg.Sim.GridWidth,
			GridH:       cfg.Sim.GridHeight,
			MaxUnits:    cfg.Sim.MaxUnits,
			TicksPerDay: cfg.Sim.TicksPerDay,
			DailyGrant:  cfg.Sim.DailyGrant,
		}

	case dispatch.ModeClient:
		client, err = gonet.Dial(cfg.Network, log)
		if err != nil {
			return err
		}
		hello := handler.BuildHello(cfg.Server.PlayerName, cfg.Network.Password, catalogHash)
		reply, err := client.Join(hello, 10*time.Second)
		if err != nil {
			client.Close()
			return err
		}
		welcome, err = handler.ParseJoinReply(reply)
		if err != nil {
			client.Close()
			return err
		}
		params = welcome.Params
		printOK(fmt.Sprintf("已加入 %s，玩家編號 %d", cfg.Network.HostAddress, welcome.PlayerID))
		if welcome.Greeting != "" {
			printOK(welcome.Greeting)
		}

	case dispatch.ModePlayback:
		loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		playbackRun, err = journalRepo.Run(loadCtx, cfg.Replay.PlaybackRun)
		if err != nil {
			cancel()
			return fmt.Errorf("load run %d: %w", cfg.Replay.PlaybackRun, err)
		}
		cancel()
		if string(playbackRun.CatalogHash) != string(catalogHash[:]) {
			return fmt.Errorf("run %d was recorded with a different unit catalog", playbackRun.ID)
		}
		params = game.ReplayParams(playbackRun)
	}

	st := world.NewState(params)
	st.Catalog = units
	st.Chat = world.NewChatLog(cfg.Sim.ChatKeep)
	if welcome != nil {
		// Rebuild the roster the snapshot was taken with.
		for _, e := range welcome.Roster {
			st.AddPlayer(e.ID, e.Name, e.Admin)
		}
	}

	// 8. Journal recording: the run row must exist before the dispatcher,
	// which taps executed actions into the journal from the first tick.
	var journalSys *system.JournalSystem
	if cfg.Replay.Record && journalRepo != nil && mode != dispatch.ModePlayback {
		row := &persist.RunRow{
			Mode:         cfg.Server.Mode,
			ServerName:   cfg.Server.Name,
			CatalogHash:  catalogHash[:],
			Seed:         params.Seed,
			InitialFunds: params.Funds,
			GridW:        params.GridW,
			GridH:        params.GridH,
			MaxUnits:     params.MaxUnits,
			TicksPerDay:  params.TicksPerDay,
			DailyGrant:   params.DailyGrant,
			Cheats:       params.Cheats,
		}
		startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		runID, err := journalRepo.StartRun(startCtx, row)
		cancel()
		if err != nil {
			return fmt.Errorf("start journal run: %w", err)
		}
		journalSys = system.NewJournalSystem(journalRepo, runID, log)
		log.Info("動作日誌已啟用", zap.Int64("run", runID))
	}
	var journal dispatch.Journal
	if journalSys != nil {
		journal = journalSys
	}

	// 9. Network capability for the dispatcher, per mode.
	var (
		server   *gonet.Server
		store    *gonet.SessionStore
		hostLink *game.HostLink
		caps     dispatch.Caps
	)
	switch mode {
	case dispatch.ModeHost:
		server, err = gonet.NewServer(cfg.Network, log)
		if err != nil {
			return fmt.Errorf("net server: %w", err)
		}
		store = gonet.NewSessionStore()
		hostLink = game.NewHostLink(store, log)
		caps = hostLink
	case dispatch.ModeClient:
		caps = game.NewClientLink(client)
	}

	runner := coresys.NewRunner()
	disp := dispatch.New(mode, st, actions, caps, journal, log)
	ctx := game.NewContext(cfg, mode, st, disp, runner, log)

	// 10. Mode-specific wiring.
	switch mode {
	case dispatch.ModeHost:
		reg := wire.NewRegistry(log)
		deps := handler.NewDeps(cfg, log, ctx, disp, actions, store, units)
		handler.RegisterAll(reg, deps)
		go server.AcceptLoop()

		runner.Register(system.NewNetInputSystem(server, reg, store, disp, cfg.Network.MaxFramesPerTick, log))
		runner.Register(system.NewAdmissionSystem(reg, store, cfg.Network.MaxFramesPerTick, log))

	case dispatch.ModeClient:
		clientReg := wire.NewRegistry(log)
		handler.RegisterClient(clientReg, &handler.ClientDeps{
			Log:     log,
			Game:    ctx,
			Disp:    disp,
			Actions: actions,
		})
		ctx.BindClient(client, clientReg)
		ctx.SetLocalPlayer(welcome.PlayerID)
		client.Start()
		runner.Register(system.NewPingSystem(st, client, cfg.Network.PingInterval))

	case dispatch.ModePlayback:
		loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		rows, err := journalRepo.Actions(loadCtx, playbackRun.ID)
		cancel()
		if err != nil {
			return fmt.Errorf("load journal of run %d: %w", playbackRun.ID, err)
		}
		if err := ctx.LoadReplay(playbackRun, rows); err != nil {
			return err
		}
	}

	// 11. Shared systems. Registration order within a phase is part of the
	// tick contract.
	runner.Register(system.NewConsoleSystem(ctx.Console()))
	if mode == dispatch.ModeStandalone || mode == dispatch.ModeHost {
		runner.Register(system.NewLobbySystem(st, disp, cfg.Sim.LobbyMinPlayers, cfg.Sim.LobbyCountdown, log))
	}
	runner.Register(system.NewActionSystem(ctx))
	runner.Register(system.NewCalendarSystem(st, log))
	runner.Register(system.NewMovementSystem(st))
	runner.Register(system.NewChatSystem(st, cfg.Sim.ChatTTLTicks))
	runner.Register(system.NewScriptSystem(st, eng))
	runner.Register(system.NewChecksumSystem(ctx, hostLink, cfg.Sim.ChecksumInterval, log))
	if hostLink != nil {
		// Beacon and flush close the output phase: a follower that sees
		// beacon N must already hold every frame of tick N.
		runner.Register(system.NewOutputSystem(st, store, hostLink))
	}
	if journalSys != nil {
		runner.Register(journalSys)
	}
	runner.Register(system.NewCleanupSystem(st, log))

	// 12. The hosting operator plays too: stage their join so it executes
	// on the first tick, through the same action every remote join uses.
	if mode == dispatch.ModeStandalone || mode == dispatch.ModeHost {
		join := &action.PlayerJoin{ID: 1, Name: cfg.Server.PlayerName, Admin: true}
		if res := disp.Enqueue(join, world.SystemOrigin); res.Failed() {
			return fmt.Errorf("operator join refused: %s", res)
		}
		ctx.SetLocalPlayer(1)
	}

	// 13. Scheduler.
	sch := sched.New(sched.Config{
		TickDuration:     cfg.Sim.TickDuration,
		MaxCatchupTicks:  cfg.Sim.MaxCatchupTicks,
		TimeScaleMin:     cfg.Sim.TimeScaleMin,
		TimeScaleMax:     cfg.Sim.TimeScaleMax,
		FastForwardLimit: cfg.Sim.FastForwardLimit,
		UncapFPS:         cfg.Render.UncapFPS,
	}, clock.New(), ctx, world.NewTweener(st), nil, ctx, log)
	ctx.BindScheduler(sch)

	// 14. Shutdown signal and local console.
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdownCh
		log.Info("收到關閉信號", zap.String("signal", sig.String()))
		ctx.Finish()
	}()

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			ctx.Console().Submit(sc.Text(), func(line string) {
				fmt.Println(line)
			})
		}
	}()

	printSection("伺服器就緒")
	if server != nil {
		printReady(fmt.Sprintf("監聽位址 %s", server.Addr().String()))
	}
	printReady(fmt.Sprintf("模擬迴圈啟動 (tick: %s)", cfg.Sim.TickDuration))
	fmt.Println()

	// 15. Run until finished or failed.
	runErr := sch.Run()

	// 16. Teardown.
	if server != nil {
		server.Shutdown()
		store.ForEach(func(sess *gonet.Session) { sess.Close() })
	}
	if client != nil {
		client.Close()
	}
	if journalSys != nil {
		journalSys.Flush()
		if runErr == nil && ctx.Failure() == nil {
			sum := st.Checksum()
			sealCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := journalRepo.FinishRun(sealCtx, journalSys.RunID(), st.Tick, sum[:]); err != nil {
				log.Error("封存日誌失敗", zap.Error(err))
			}
			cancel()
		}
	}

	log.Info("伺服器已停止", zap.Uint64("tick", st.Tick))
	if runErr != nil {
		return runErr
	}
	return ctx.Failure()
}

// parseMode maps the validated config mode string onto a dispatch mode.
func parseMode(s string) dispatch.Mode {
	switch s {
	case "host":
		return dispatch.ModeHost
	case "client":
		return dispatch.ModeClient
	case "playback":
		return dispatch.ModePlayback
	default:
		return dispatch.ModeStandalone
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

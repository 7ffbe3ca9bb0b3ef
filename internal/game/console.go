package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/dispatch"
	"github.com/gridsim/server/internal/world"
)

// consoleLine is one submitted command with the sink its replies go to.
// The sink runs on the game loop goroutine and must not block.
type consoleLine struct {
	text  string
	reply func(string)
}

// Console evaluates operator commands. Lines arrive from any goroutine
// (stdin reader, admin sessions) and are evaluated on the game loop at the
// console phase, so commands mutate state only through the dispatcher at a
// deterministic point.
type Console struct {
	ctx   *Context
	queue chan consoleLine
}

func newConsole(ctx *Context) *Console {
	return &Console{ctx: ctx, queue: make(chan consoleLine, 16)}
}

// Submit queues a command line. Safe from any goroutine. A full queue drops
// the line with a reply instead of blocking the caller.
func (c *Console) Submit(text string, reply func(string)) {
	select {
	case c.queue <- consoleLine{text: text, reply: reply}:
	default:
		reply("主控台佇列已滿，指令已丟棄")
	}
}

// ProcessQueue evaluates everything queued since the last pass.
func (c *Console) ProcessQueue() {
	for {
		select {
		case l := <-c.queue:
			c.Eval(l.text, l.reply)
		default:
			return
		}
	}
}

// Eval runs one command line and replies through the sink.
func (c *Console) Eval(text string, reply func(string)) {
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help":
		c.cmdHelp(reply)
	case "status":
		c.cmdStatus(reply)
	case "players", "who":
		c.cmdPlayers(reply)
	case "units":
		c.cmdUnits(reply)
	case "pause":
		c.cmdPause(reply)
	case "speed":
		c.cmdSpeed(args, reply)
	case "start":
		c.cmdStart(reply)
	case "spawn":
		c.cmdSpawn(args, reply)
	case "orders":
		c.cmdOrders(args, reply)
	case "move":
		c.cmdMove(args, reply)
	case "say":
		c.cmdSay(args, reply)
	case "cheat":
		c.cmdCheat(args, reply)
	case "checksum":
		c.cmdChecksum(reply)
	case "quit", "stop", "exit":
		reply("正在關閉...")
		c.ctx.Finish()
	default:
		reply("未知的指令: " + cmd + "  輸入 help 查看指令列表")
	}
}

func replyf(reply func(string), format string, a ...any) {
	reply(fmt.Sprintf(format, a...))
}

func (c *Console) cmdHelp(reply func(string)) {
	reply("=== 指令列表 ===")
	reply("status  — 顯示模擬狀態")
	reply("players  — 列出玩家")
	reply("units  — 列出單位")
	reply("pause  — 切換暫停")
	reply("speed <倍率>  — 調整模擬速度")
	reply("start  — 立即開始對局")
	reply("spawn <種類ID> <x> <y>  — 生成單位")
	reply("orders <單位ID> <none|hold|patrol|all>  — 設定單位命令")
	reply("move <單位ID> <x> <y>  — 移動單位")
	reply("say <訊息>  — 發送聊天訊息")
	reply("cheat <funds|days|remove> <數值>  — 作弊指令")
	reply("checksum  — 顯示當前狀態校驗和")
	reply("quit  — 關閉")
}

func (c *Console) cmdStatus(reply func(string)) {
	st := c.ctx.st
	replyf(reply, "模式:%s  tick:%d  階段:%s  暫停:%v",
		c.ctx.mode, st.Tick, st.Substate, st.Paused)
	replyf(reply, "資金:%d  日:%d (%d/%d)  玩家:%d  單位:%d/%d",
		st.Funds, st.Date.Day, st.Date.TickOfDay, st.TicksPerDay,
		st.PlayerCount(), st.UnitCount(), st.MaxUnits)
	if c.ctx.sched != nil {
		replyf(reply, "速度:%.2fx", c.ctx.sched.TimeScale())
	}
}

func (c *Console) cmdPlayers(reply func(string)) {
	players := c.ctx.st.PlayersOrdered()
	for _, p := range players {
		mark := ""
		if p.Admin {
			mark = " [管理員]"
		}
		replyf(reply, "  %d: %s%s", p.ID, p.Name, mark)
	}
	replyf(reply, "玩家人數: %d", len(players))
}

func (c *Console) cmdUnits(reply func(string)) {
	units := c.ctx.st.UnitsOrdered()
	for _, u := range units {
		target := ""
		if u.HasTarget {
			target = fmt.Sprintf(" → (%d,%d)", u.TargetX, u.TargetY)
		}
		replyf(reply, "  %d: 種類:%d 擁有者:%d 位置:(%d,%d)%s 命令:%s",
			u.ID, u.Kind, u.Owner, u.X, u.Y, target, orderNames(u.Orders))
	}
	replyf(reply, "單位數: %d", len(units))
}

func (c *Console) cmdPause(reply func(string)) {
	res := c.ctx.disp.Enqueue(&action.PauseToggle{}, c.consoleOrigin())
	if res.Failed() {
		replyf(reply, "暫停失敗: %s", res)
		return
	}
	if res.Status == action.StatusQueued {
		reply("暫停請求已送出")
		return
	}
	if c.ctx.st.Paused {
		reply("模擬已暫停")
	} else {
		reply("模擬已恢復")
	}
}

func (c *Console) cmdSpeed(args []string, reply func(string)) {
	if c.ctx.mode == dispatch.ModeClient {
		reply("從屬端的節奏由主機決定，無法調整速度")
		return
	}
	if c.ctx.sched == nil {
		reply("排程器尚未啟動")
		return
	}
	if len(args) < 1 {
		replyf(reply, "用法: speed <倍率>  (目前 %.2fx)", c.ctx.sched.TimeScale())
		return
	}
	scale, err := strconv.ParseFloat(args[0], 64)
	if err != nil || scale <= 0 {
		reply("無效的倍率")
		return
	}
	applied := c.ctx.sched.SetTimeScale(scale)
	replyf(reply, "模擬速度已設為 %.2fx", applied)
}

func (c *Console) cmdStart(reply func(string)) {
	res := c.ctx.disp.Enqueue(&action.MatchStart{}, world.SystemOrigin)
	if res.Failed() {
		replyf(reply, "開始失敗: %s", res)
		return
	}
	reply("對局開始")
}

func (c *Console) cmdSpawn(args []string, reply func(string)) {
	if len(args) < 3 {
		reply("用法: spawn <種類ID> <x> <y>")
		return
	}
	kind, err := strconv.Atoi(args[0])
	if err != nil || kind < 1 || kind > 65535 {
		reply("無效的種類ID")
		return
	}
	x, err := strconv.Atoi(args[1])
	if err != nil {
		reply("無效的X座標")
		return
	}
	y, err := strconv.Atoi(args[2])
	if err != nil {
		reply("無效的Y座標")
		return
	}

	res := c.ctx.disp.Enqueue(&action.UnitSpawn{
		UnitKind: uint16(kind),
		X:        int32(x),
		Y:        int32(y),
	}, c.consoleOrigin())
	replyf(reply, "spawn: %s", res)
}

func (c *Console) cmdOrders(args []string, reply func(string)) {
	if len(args) < 2 {
		reply("用法: orders <單位ID> <none|hold|patrol|all>")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 1 {
		reply("無效的單位ID")
		return
	}

	var orders uint8
	switch strings.ToLower(args[1]) {
	case "none":
		orders = 0
	case "hold":
		orders = world.OrderHold
	case "patrol":
		orders = world.OrderPatrol
	case "all":
		orders = world.OrderMaskAll
	default:
		reply("未知的命令: " + args[1])
		return
	}

	res := c.ctx.disp.Enqueue(&action.UnitOrders{
		Unit:   world.UnitID(id),
		Orders: orders,
	}, c.consoleOrigin())
	replyf(reply, "orders: %s", res)
}

func (c *Console) cmdMove(args []string, reply func(string)) {
	if len(args) < 3 {
		reply("用法: move <單位ID> <x> <y>")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 1 {
		reply("無效的單位ID")
		return
	}
	x, err := strconv.Atoi(args[1])
	if err != nil {
		reply("無效的X座標")
		return
	}
	y, err := strconv.Atoi(args[2])
	if err != nil {
		reply("無效的Y座標")
		return
	}

	res := c.ctx.disp.Enqueue(&action.UnitMove{
		Unit: world.UnitID(id),
		X:    int32(x),
		Y:    int32(y),
	}, c.consoleOrigin())
	replyf(reply, "move: %s", res)
}

func (c *Console) cmdSay(args []string, reply func(string)) {
	if len(args) == 0 {
		reply("用法: say <訊息>")
		return
	}
	if c.ctx.localPlayer == world.SystemOrigin {
		reply("此節點沒有本地玩家，無法發言")
		return
	}
	res := c.ctx.disp.Enqueue(&action.Chat{
		Text: strings.Join(args, " "),
	}, c.ctx.localPlayer)
	if res.Failed() {
		replyf(reply, "say: %s", res)
	}
}

func (c *Console) cmdCheat(args []string, reply func(string)) {
	if len(args) < 2 {
		reply("用法: cheat <funds|days|remove> <數值>")
		return
	}
	value, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		reply("無效的數值")
		return
	}

	var code uint8
	switch strings.ToLower(args[0]) {
	case "funds":
		code = action.CheatGrantFunds
	case "days":
		code = action.CheatAdvanceDays
	case "remove":
		code = action.CheatRemoveUnit
	default:
		reply("未知的作弊指令: " + args[0])
		return
	}

	res := c.ctx.disp.Enqueue(&action.Cheat{Cheat: code, Value: value}, c.consoleOrigin())
	replyf(reply, "cheat: %s", res)
}

func (c *Console) cmdChecksum(reply func(string)) {
	sum := c.ctx.st.Checksum()
	replyf(reply, "tick:%d 校驗和:%x", c.ctx.st.Tick, sum[:8])
}

// consoleOrigin is the player id console actions act as: the local player
// when one exists. An unassigned local player is zero, which is exactly the
// system origin, so headless hosts fall through to system actions.
func (c *Console) consoleOrigin() world.PlayerID {
	return c.ctx.localPlayer
}

func orderNames(mask uint8) string {
	if mask == 0 {
		return "none"
	}
	var parts []string
	if mask&world.OrderHold != 0 {
		parts = append(parts, "hold")
	}
	if mask&world.OrderPatrol != 0 {
		parts = append(parts, "patrol")
	}
	return strings.Join(parts, "+")
}

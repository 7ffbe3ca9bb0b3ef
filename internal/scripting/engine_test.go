package scripting

import (
	"os"
	"path/filepath"
	"testing"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestMissingDirectoryYieldsEmptyEngine(t *testing.T) {
	e, err := NewEngine(filepath.Join(t.TempDir(), "absent"), zap.NewNop())
	if err != nil {
		t.Fatalf("missing dir should not fail: %v", err)
	}
	defer e.Close()

	if e.HasHook("on_tick") {
		t.Error("empty engine reports an on_tick hook")
	}
	e.OnTick(1) // must be a no-op, not a panic
	e.OnEvent("player_joined", map[string]any{"player_id": 1})
}

func TestHooksReceiveCalls(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "watch.lua", `
last_tick = 0
last_event = ""
function on_tick(tick)
	last_tick = tick
end
function on_event(name, fields)
	last_event = name .. ":" .. tostring(fields.player_id) .. ":" .. tostring(fields.name)
end
`)
	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.OnTick(42)
	e.OnEvent("player_joined", map[string]any{"player_id": uint16(3), "name": "kaori"})

	if got := lua.LVAsNumber(e.vm.GetGlobal("last_tick")); got != 42 {
		t.Errorf("last_tick = %v, want 42", got)
	}
	if got := lua.LVAsString(e.vm.GetGlobal("last_event")); got != "player_joined:3:kaori" {
		t.Errorf("last_event = %q", got)
	}
}

func TestHooksSubdirectoryLoads(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "hooks"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeScript(t, filepath.Join(dir, "hooks"), "tick.lua", `function on_tick(t) end`)
	writeScript(t, dir, "notes.txt", "not a script")

	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if !e.HasHook("on_tick") {
		t.Error("hook from hooks/ subdirectory not loaded")
	}
}

func TestBrokenScriptFailsLoad(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken.lua", `function on_tick( -- unterminated`)

	if _, err := NewEngine(dir, zap.NewNop()); err == nil {
		t.Fatal("syntax error did not fail the load")
	}
}

func TestHookErrorIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "angry.lua", `function on_tick(t) error("boom") end`)

	e, err := NewEngine(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.OnTick(1) // logged, not propagated
}

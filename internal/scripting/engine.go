// Package scripting runs Lua observer hooks alongside the simulation.
// Scripts watch the game; they cannot reach back into it, so a missing or
// misbehaving script never desyncs peers.
package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM. Single-goroutine access only (game
// loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. A missing directory yields an engine with no hooks.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if err := e.loadDir(filepath.Join(scriptsDir, "hooks")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load hook scripts: %w", err)
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("載入 lua 腳本", zap.String("file", path))
	}
	return nil
}

// OnTick calls the Lua on_tick hook, if a script defined one. Hook errors
// are logged and swallowed.
func (e *Engine) OnTick(tick uint64) {
	fn := e.vm.GetGlobal("on_tick")
	if fn == lua.LNil {
		return
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(tick)); err != nil {
		e.log.Error("lua on_tick 執行失敗", zap.Error(err))
	}
}

// OnEvent calls the Lua on_event hook with the event name and a flat table
// of its fields.
func (e *Engine) OnEvent(name string, fields map[string]any) {
	fn := e.vm.GetGlobal("on_event")
	if fn == lua.LNil {
		return
	}

	t := e.vm.NewTable()
	for k, v := range fields {
		t.RawSetString(k, toLValue(v))
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LString(name), t); err != nil {
		e.log.Error("lua on_event 執行失敗",
			zap.String("event", name),
			zap.Error(err),
		)
	}
}

// HasHook reports whether a script defined the named global function.
func (e *Engine) HasHook(name string) bool {
	return e.vm.GetGlobal(name) != lua.LNil
}

func toLValue(v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint8:
		return lua.LNumber(x)
	case uint16:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case uint64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}

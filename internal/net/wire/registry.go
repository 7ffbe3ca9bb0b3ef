package wire

import (
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents a peer link's current protocol phase.
type SessionState int

const (
	StateHello   SessionState = iota // connected, awaiting C_HELLO
	StateJoined                      // admitted, exchanging simulation traffic
	StateClosing                     // being torn down
)

func (s SessionState) String() string {
	switch s {
	case StateHello:
		return "Hello"
	case StateJoined:
		return "Joined"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc is the callback signature for payload handlers.
// The peer pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(peer any, r *Reader)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps opcodes to handlers with state-based access control.
type Registry struct {
	handlers map[byte]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[byte]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given states.
func (reg *Registry) Register(opcode byte, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[opcode] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch finds the handler for the opcode in data[0], validates the peer
// state, and calls the handler. Returns an error if the payload is empty or
// the state is not allowed; unknown opcodes are ignored.
func (reg *Registry) Dispatch(peer any, state SessionState, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	opcode := data[0]
	reg.log.Debug("收到封包",
		zap.Uint8("opcode", opcode),
		zap.Int("size", len(data)),
		zap.String("state", state.String()),
	)

	entry, ok := reg.handlers[opcode]
	if !ok {
		reg.log.Debug("未知操作碼", zap.Uint8("opcode", opcode), zap.String("state", state.String()))
		return nil // silently ignore unknown opcodes
	}

	if !entry.allowedStates[state] {
		reg.log.Warn("操作碼在此狀態下不允許",
			zap.Uint8("opcode", opcode),
			zap.String("state", state.String()),
		)
		return fmt.Errorf("opcode %d not allowed in state %s", opcode, state)
	}

	r := NewReader(data)
	return reg.safeCall(entry.fn, peer, r, opcode)
}

// safeCall executes a handler with panic recovery to prevent a single
// bad payload from crashing the entire game loop.
func (reg *Registry) safeCall(fn HandlerFunc, peer any, r *Reader, opcode byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.Uint8("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode %d: %v", opcode, rec)
		}
	}()
	fn(peer, r)
	return nil
}

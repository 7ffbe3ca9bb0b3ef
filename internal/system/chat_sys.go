package system

import (
	"time"

	coresys "github.com/gridsim/server/internal/core/system"
	"github.com/gridsim/server/internal/world"
)

// ChatSystem expires old chat messages. Phase 3 (PostUpdate) housekeeping;
// the chat ring is display-only, so trimming it never touches checksummed
// state.
type ChatSystem struct {
	st  *world.State
	ttl uint64
}

func NewChatSystem(st *world.State, ttl uint64) *ChatSystem {
	return &ChatSystem{st: st, ttl: ttl}
}

func (s *ChatSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *ChatSystem) Update(_ time.Duration) {
	s.st.Chat.Expire(s.st.Tick, s.ttl)
}

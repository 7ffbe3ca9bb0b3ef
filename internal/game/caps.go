package game

import (
	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// HostLink is the dispatch capability of a hosting peer: executed actions
// fan out to every joined session as tick-tagged S_ACTION frames. Frames go
// through the per-session output buffers, so nothing hits TCP before the
// tick's output phase.
type HostLink struct {
	store *net.SessionStore
	log   *zap.Logger
}

func NewHostLink(store *net.SessionStore, log *zap.Logger) *HostLink {
	return &HostLink{store: store, log: log}
}

// Broadcast replicates an executed action. Sessions are visited in id order
// so every follower sees the same frame order.
func (l *HostLink) Broadcast(tick uint64, origin world.PlayerID, a action.Action) {
	w := wire.NewWriterWithOpcode(wire.S_ACTION)
	w.WriteQ(tick)
	w.WriteH(uint16(origin))
	w.WriteH(uint16(a.Kind()))
	a.Serialise(w)
	l.sendJoined(w.Bytes())
}

// SubmitToHost is part of dispatch.Caps but can never fire on a host; the
// dispatcher only calls it in client mode.
func (l *HostLink) SubmitToHost(origin world.PlayerID, a action.Action) {
	l.log.Error("主機嘗試向自己提交動作", zap.Uint16("kind", uint16(a.Kind())))
}

// BroadcastTick emits the per-tick beacon followers gate their own tick on.
func (l *HostLink) BroadcastTick(tick uint64) {
	w := wire.NewWriterWithOpcode(wire.S_TICK)
	w.WriteQ(tick)
	l.sendJoined(w.Bytes())
}

// BroadcastChecksum emits a state digest for followers to compare against.
func (l *HostLink) BroadcastChecksum(tick uint64, sum []byte) {
	w := wire.NewWriterWithOpcode(wire.S_CHECKSUM)
	w.WriteQ(tick)
	w.WriteBytes(sum)
	l.sendJoined(w.Bytes())
}

func (l *HostLink) sendJoined(frame []byte) {
	for _, sess := range l.store.Ordered() {
		if sess.State() != wire.StateJoined {
			continue
		}
		sess.Send(frame)
	}
}

// ClientLink is the dispatch capability of a joined follower: local
// proposals travel to the host as C_ACTION frames and only take effect when
// the host's broadcast returns.
type ClientLink struct {
	client *net.Client
}

func NewClientLink(client *net.Client) *ClientLink {
	return &ClientLink{client: client}
}

// Broadcast is part of dispatch.Caps but followers never broadcast.
func (l *ClientLink) Broadcast(tick uint64, origin world.PlayerID, a action.Action) {}

// SubmitToHost forwards a locally proposed action. The host derives the
// origin from the submitting session, so only the payload travels.
func (l *ClientLink) SubmitToHost(origin world.PlayerID, a action.Action) {
	w := wire.NewWriterWithOpcode(wire.C_ACTION)
	w.WriteH(uint16(a.Kind()))
	a.Serialise(w)
	l.client.Send(w.Bytes())
}

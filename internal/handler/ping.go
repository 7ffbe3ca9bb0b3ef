package handler

import (
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
)

// HandlePing processes C_PING (opcode 0x04): echo the nonce back as
// S_PONG. Allowed before admission so a launcher can probe the host.
func HandlePing(sess *net.Session, r *wire.Reader, deps *Deps) {
	nonce := r.ReadQ()
	w := wire.NewWriterWithOpcode(wire.S_PONG)
	w.WriteQ(nonce)
	sess.Send(w.Bytes())
}

package handler

import (
	"go.uber.org/zap"

	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
)

// HandleConsole processes C_CONSOLE (opcode 0x03): one operator command
// line from an admin session. Output lines travel back as S_CONSOLE.
//
// The line is queued, not evaluated here: the console runs at its own
// phase so remote commands mutate state at the same point as local ones.
func HandleConsole(sess *net.Session, r *wire.Reader, deps *Deps) {
	line := r.ReadS()
	if r.Err() != nil {
		sess.Close()
		return
	}
	if !sess.Admin {
		deps.Log.Warn("非管理員嘗試使用遠端主控台",
			zap.Uint64("session", sess.ID),
			zap.String("name", sess.PlayerName),
		)
		sendConsoleLine(sess, "需要管理員權限")
		return
	}

	deps.Game.Console().Submit(line, func(out string) {
		sendConsoleLine(sess, out)
	})
}

func sendConsoleLine(sess *net.Session, line string) {
	w := wire.NewWriterWithOpcode(wire.S_CONSOLE)
	w.WriteS(line)
	sess.Send(w.Bytes())
}

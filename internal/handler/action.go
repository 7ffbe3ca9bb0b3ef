package handler

import (
	"go.uber.org/zap"

	"github.com/gridsim/server/internal/action"
	"github.com/gridsim/server/internal/net"
	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// HandleAction processes C_ACTION (opcode 0x02).
// Format: [opcode][kind H][payload]
//
// The origin is the submitting session's player, never a field of the
// payload: a peer cannot act as someone else. The synchronous verdict goes
// back as S_RESULT; the action itself, if accepted, returns to every peer
// through the host's broadcast.
func HandleAction(sess *net.Session, r *wire.Reader, deps *Deps) {
	kind := action.Kind(r.ReadH())
	a := deps.Actions.New(kind)
	if a == nil {
		deps.Log.Warn("未知的動作類型，斷開連線",
			zap.Uint64("session", sess.ID),
			zap.Uint16("kind", uint16(kind)),
		)
		sess.Close()
		return
	}
	if err := a.Deserialise(r); err != nil {
		deps.Log.Warn("動作內容格式錯誤，斷開連線",
			zap.Uint64("session", sess.ID),
			zap.String("action", deps.Actions.Name(kind)),
			zap.Error(err),
		)
		sess.Close()
		return
	}

	res := deps.Disp.Enqueue(a, world.PlayerID(sess.PlayerID))
	sess.Send(buildResult(kind, res))
}

// buildResult builds the S_RESULT frame echoing a submitted action's verdict.
// Format: [opcode][kind H][status C][class C][detail S][cost QS]
func buildResult(kind action.Kind, res action.Result) []byte {
	w := wire.NewWriterWithOpcode(wire.S_RESULT)
	w.WriteH(uint16(kind))
	w.WriteC(byte(res.Status))
	w.WriteC(byte(res.Class))
	w.WriteS(res.Detail)
	w.WriteQS(res.Cost)
	return w.Bytes()
}

// Package net carries framed messages between peers. Network I/O runs in
// per-session goroutines; the game loop talks to a session only through its
// queues and the game-loop-only output buffer.
package net

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/config"
	"github.com/gridsim/server/internal/net/wire"
)

// Session represents a single peer connection.
type Session struct {
	ID   uint64
	conn net.Conn

	state atomic.Int32 // wire.SessionState stored as int32

	InQueue  chan []byte // game loop reads frames from here
	OutQueue chan []byte // writer goroutine reads from here

	IP string

	// Identity, set by the hello handler when the peer is admitted.
	// Game loop goroutine only.
	PlayerID   uint16
	PlayerName string
	Admin      bool

	outBuf [][]byte // buffered frames, flushed once per tick (game loop only)

	closeCh    chan struct{}
	closeOnce  sync.Once
	closed     atomic.Bool
	closeEmpty atomic.Bool // close once OutQueue drains (reject path)

	// Per-second frame rate limiter (readLoop goroutine only, no lock needed)
	framesPerSec int
	frameCount   int
	frameResetAt int64

	readTimeout  time.Duration
	writeTimeout time.Duration

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, cfg config.NetworkConfig, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		conn:         conn,
		InQueue:      make(chan []byte, cfg.InQueueSize),
		OutQueue:     make(chan []byte, cfg.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		closeCh:      make(chan struct{}),
		framesPerSec: cfg.FramesPerSecond,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(wire.StateHello))
	return s
}

func (s *Session) State() wire.SessionState {
	return wire.SessionState(s.state.Load())
}

func (s *Session) SetState(st wire.SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines. The peer speaks first
// (C_HELLO), so nothing is written here.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a frame for sending. Frames are not written to TCP until
// FlushOutput runs at the tick's output phase.
// Called only from the game loop goroutine.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop
// goroutine. Non-blocking: if OutQueue is full the session is disconnected
// (backpressure).
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("輸出佇列已滿，斷開慢速連線")
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]

	if s.closeEmpty.Load() && len(s.OutQueue) == 0 {
		s.Close()
	}
}

// CloseAfterFlush marks the session to close once every buffered frame has
// been written. Used for rejects: the refusal must reach the peer before
// the socket drops.
func (s *Session) CloseAfterFlush() {
	s.SetState(wire.StateClosing)
	s.closeEmpty.Store(true)
}

// Close shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(wire.StateClosing)
		close(s.closeCh)
		s.conn.Close()
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop reads frames from the TCP connection and pushes them onto
// InQueue for the game loop to consume.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}
		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("讀取錯誤", zap.Error(err))
			}
			return
		}

		// Per-second frame rate limiter
		if s.framesPerSec > 0 {
			now := time.Now().Unix()
			if now != s.frameResetAt {
				s.frameCount = 0
				s.frameResetAt = now
			}
			s.frameCount++
			if s.frameCount > s.framesPerSec {
				s.log.Warn("訊框速率超限，斷開連線", zap.Int("fps", s.frameCount))
				return
			}
		}

		// Block until InQueue has space or the session closes. Dropping
		// frames is never safe here: a dropped action or tick beacon
		// desyncs the peer permanently. The readLoop goroutine is
		// per-session, so blocking stalls only this peer.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop reads frames from OutQueue and writes them to the TCP
// connection.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writeOneFrame(data) {
				return
			}
			if s.closeEmpty.Load() && len(s.OutQueue) == 0 {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeOneFrame(data []byte) bool {
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := WriteFrame(s.conn, data); err != nil {
		if !s.closed.Load() {
			s.log.Debug("寫入錯誤", zap.Error(err))
		}
		return false
	}
	return true
}

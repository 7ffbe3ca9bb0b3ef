package net

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gridsim/server/internal/config"
)

// Client maintains the outbound link to a host. The handshake runs
// synchronously before the loops start; afterwards the game loop drains
// Frames() once per poll.
type Client struct {
	conn   net.Conn
	frames chan []byte // inbound frames for the game loop
	out    chan []byte // outbound frames for the writer goroutine

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	readTimeout  time.Duration
	writeTimeout time.Duration

	log *zap.Logger
}

func Dial(cfg config.NetworkConfig, log *zap.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", cfg.HostAddress, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial host %s: %w", cfg.HostAddress, err)
	}
	return &Client{
		conn:         conn,
		frames:       make(chan []byte, cfg.InQueueSize),
		out:          make(chan []byte, cfg.OutQueueSize),
		closeCh:      make(chan struct{}),
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		log:          log,
	}, nil
}

// Join performs the synchronous handshake: send the hello frame, read the
// single reply frame (welcome or reject). Called before Start.
func (c *Client) Join(hello []byte, timeout time.Duration) ([]byte, error) {
	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := WriteFrame(c.conn, hello); err != nil {
		return nil, fmt.Errorf("send hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	reply, err := ReadFrame(c.conn)
	if err != nil {
		return nil, fmt.Errorf("read hello reply: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})
	return reply, nil
}

// Start launches the reader and writer goroutines.
func (c *Client) Start() {
	go c.readLoop()
	go c.writeLoop()
}

// Frames returns the inbound frame channel.
func (c *Client) Frames() <-chan []byte {
	return c.frames
}

// Send queues a frame for the host. Non-blocking: a full queue means the
// link is dead or stalled, and a stalled lockstep link cannot recover.
func (c *Client) Send(data []byte) {
	if c.closed.Load() {
		return
	}
	select {
	case c.out <- data:
	default:
		c.log.Warn("傳送佇列已滿，關閉與主機的連線")
		c.Close()
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeCh)
		c.conn.Close()
	})
}

func (c *Client) IsClosed() bool {
	return c.closed.Load()
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		if c.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		payload, err := ReadFrame(c.conn)
		if err != nil {
			if !c.closed.Load() {
				c.log.Debug("主機連線讀取錯誤", zap.Error(err))
			}
			return
		}

		select {
		case c.frames <- payload:
		case <-c.closeCh:
			return
		}
	}
}

func (c *Client) writeLoop() {
	defer c.Close()

	for {
		select {
		case data := <-c.out:
			if c.writeTimeout > 0 {
				c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := WriteFrame(c.conn, data); err != nil {
				if !c.closed.Load() {
					c.log.Debug("主機連線寫入錯誤", zap.Error(err))
				}
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

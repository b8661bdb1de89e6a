// internal/registry/handle.go
package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Conn is the minimal transport surface a Handle writes to. *websocket.Conn
// satisfies it through WSConn; tests substitute an in-memory fake.
type Conn interface {
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// WSConn adapts a coder/websocket connection to the Conn interface,
// pinning the message type to text frames.
type WSConn struct {
	C *websocket.Conn
}

func (w WSConn) Write(ctx context.Context, data []byte) error {
	return w.C.Write(ctx, websocket.MessageText, data)
}

func (w WSConn) Close(code websocket.StatusCode, reason string) error {
	return w.C.Close(code, reason)
}

// Handle wraps one live transport connection together with the identity
// that most recently authenticated it. Outbound messages go through a
// buffered channel drained by a single write pump, so senders never block
// on a slow socket.
type Handle struct {
	Identity string

	conn   Conn
	out    chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger

	// onDead is set by the registry; invoked once when a write fails.
	onDead func(h *Handle)
}

const writeTimeout = 5 * time.Second

// NewHandle creates a handle and starts its write pump. The pump exits when
// the parent context is cancelled or a write fails.
func NewHandle(parent context.Context, identity string, conn Conn, logger *logrus.Logger) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{
		Identity: identity,
		conn:     conn,
		out:      make(chan []byte, 16),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
	go h.writePump()
	return h
}

// Send marshals msg and enqueues it for the write pump. A full or closed
// queue drops the message; the registry treats the recipient as meaningful
// only at the call site, never here.
func (h *Handle) Send(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warnf("handle %s: failed to marshal outbound message: %v", h.Identity, err)
		return
	}
	select {
	case h.out <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warnf("handle %s: outbound queue full, dropping message", h.Identity)
	}
}

// Close cancels the pump and closes the underlying transport.
func (h *Handle) Close(code websocket.StatusCode, reason string) {
	h.cancel()
	_ = h.conn.Close(code, reason)
}

func (h *Handle) writePump() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case data := <-h.out:
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := h.conn.Write(ctx, data)
			cancel()
			if err != nil {
				h.logger.Warnf("handle %s: write failed, treating as disconnect: %v", h.Identity, err)
				h.cancel()
				if h.onDead != nil {
					h.onDead(h)
				}
				return
			}
		}
	}
}

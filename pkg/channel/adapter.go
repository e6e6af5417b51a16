package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gorilla/websocket"
)

const (
	DefaultBackoff = 3 * time.Second
	writeWait      = 10 * time.Second
	// Encoded chunks are about 4/3 of MaxChunkSize plus the envelope.
	maxMessageSize = 4 << 20
)

var ErrNotOpen = errors.New("channel is not open")

// Handler receives the channel's callbacks. Calls arrive from the adapter's
// read goroutine, one at a time.
type Handler interface {
	HandleMessage(data []byte)
	HandleOpen()
	HandleClose(err error)
	HandleError(err error)
}

// Adapter keeps one websocket connection to the relay open, redialing after
// a fixed backoff for as long as Run is active. It never looks inside the
// messages it carries.
type Adapter struct {
	url     string
	dialer  *websocket.Dialer
	backoff time.Duration
	clock   clock.Clock

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex
}

type Option func(*Adapter)

func WithBackoff(d time.Duration) Option {
	return func(a *Adapter) { a.backoff = d }
}

func WithClock(c clock.Clock) Option {
	return func(a *Adapter) { a.clock = c }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(a *Adapter) { a.dialer = d }
}

func NewAdapter(url string, opts ...Option) *Adapter {
	a := &Adapter{
		url:     url,
		dialer:  websocket.DefaultDialer,
		backoff: DefaultBackoff,
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) URL() string { return a.url }

func (a *Adapter) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

// Send writes one text frame. When the connection is not open the message
// is dropped and ErrNotOpen is returned; nothing is queued.
func (a *Adapter) Send(data []byte) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Run dials the relay and pumps inbound messages to h until ctx is done.
// Every lost or failed connection is retried after the backoff, without
// limit.
func (a *Adapter) Run(ctx context.Context, h Handler) error {
	for {
		err := a.connect(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		slog.Info("Reconnecting to relay", "url", a.url, "backoff", a.backoff, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-a.clock.After(a.backoff):
		}
	}
}

func (a *Adapter) connect(ctx context.Context, h Handler) error {
	conn, _, err := a.dialer.DialContext(ctx, a.url, nil)
	if err != nil {
		if ctx.Err() == nil {
			h.HandleError(fmt.Errorf("dial %s: %w", a.url, err))
		}
		return err
	}
	conn.SetReadLimit(maxMessageSize)

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	slog.Info("Connected to relay", "url", a.url)
	h.HandleOpen()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			a.closeConn(conn, websocket.CloseNormalClosure)
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.detach(conn)
			if ctx.Err() == nil {
				h.HandleClose(err)
			}
			return err
		}
		h.HandleMessage(data)
	}
}

// Close drops the current connection. Run will redial unless its context
// is done.
func (a *Adapter) Close() error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return nil
	}
	a.closeConn(conn, websocket.CloseGoingAway)
	return nil
}

func (a *Adapter) closeConn(conn *websocket.Conn, code int) {
	a.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	a.writeMu.Unlock()
	a.detach(conn)
}

func (a *Adapter) detach(conn *websocket.Conn) {
	a.mu.Lock()
	if a.conn == conn {
		a.conn = nil
	}
	a.mu.Unlock()
	if err := conn.Close(); err != nil {
		slog.Debug("close websocket", "error", err)
	}
}

package coordinator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/andres-erbsen/clock"
	tea "github.com/charmbracelet/bubbletea"
	appevents "github.com/rescp17/relayFileSharer/internal/app_events"
	"github.com/rescp17/relayFileSharer/pkg/concurrency"
	"github.com/rescp17/relayFileSharer/pkg/protocol"
	"github.com/rescp17/relayFileSharer/pkg/session"
	"github.com/rescp17/relayFileSharer/pkg/transfer"
)

// Outbound hands serialized messages to the relay connection. Delivery is
// not guaranteed; Send may drop the message when the link is down.
type Outbound interface {
	Send(data []byte) error
}

// Saver is the download sink for assembled files.
type Saver interface {
	Save(name string, data []byte) (string, error)
}

// Coordinator owns the live Session. All session mutation happens on the
// goroutine running Run; every other entry point only posts an event.
type Coordinator struct {
	cfg        transfer.TransferConfig
	clock      clock.Clock
	out        Outbound
	serializer protocol.MessageSerializer
	saver      Saver
	gate       *concurrency.RequestGate
	shareBase  string

	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
	events     chan loopEvent
	done       chan struct{}
	stop       <-chan struct{}

	// Fields below are only touched by the loop goroutine.
	session        *session.Session
	publishedState session.State
	connectionID   string
	connected      bool
	chunker        *transfer.Chunker
	timers         map[timerKind]timerSlot
	tokenSeq       uint64
	queue          []loopEvent
}

type Option func(*Coordinator)

func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

func WithSaver(s Saver) Option {
	return func(co *Coordinator) { co.saver = s }
}

func WithSerializer(s protocol.MessageSerializer) Option {
	return func(co *Coordinator) { co.serializer = s }
}

// WithShareBase sets the relay URL share links are built from.
func WithShareBase(base string) Option {
	return func(co *Coordinator) { co.shareBase = base }
}

func New(cfg transfer.TransferConfig, out Outbound, opts ...Option) *Coordinator {
	bufferSize := cfg.EventBufferSize
	if bufferSize <= 0 {
		bufferSize = transfer.DefaultTransferConfig().EventBufferSize
	}
	c := &Coordinator{
		cfg:        cfg,
		clock:      clock.New(),
		out:        out,
		serializer: protocol.NewJSONSerializer(),
		gate:       concurrency.NewRequestGate(),
		uiMessages: make(chan tea.Msg, bufferSize),
		appEvents:  make(chan appevents.AppEvent, bufferSize),
		events:     make(chan loopEvent, bufferSize),
		done:       make(chan struct{}),
		session:    session.New(),
		timers:     make(map[timerKind]timerSlot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UIMessages returns the channel for the UI to listen on for updates.
func (c *Coordinator) UIMessages() <-chan tea.Msg {
	return c.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (c *Coordinator) AppEvents() chan<- appevents.AppEvent {
	return c.appEvents
}

// Run starts the coordinator's event loop and blocks until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	c.stop = ctx.Done()
	defer close(c.done)
	defer c.shutdown()

	slog.Info("Coordinator started", "session", c.session.ID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.appEvents:
			c.handleAppEvent(ev)
		case ev := <-c.events:
			c.handleLoopEvent(ev)
		}
		c.drainQueue()
	}
}

// HandleMessage, HandleOpen, HandleClose and HandleError are the channel
// callbacks. They may be called from any goroutine.
func (c *Coordinator) HandleMessage(data []byte) { c.post(inboundMsg{data: data}) }

func (c *Coordinator) HandleOpen() { c.post(channelOpened{}) }

func (c *Coordinator) HandleClose(err error) { c.post(channelClosed{err: err}) }

func (c *Coordinator) HandleError(err error) { c.post(channelFailed{err: err}) }

// Snapshot is a read-only view of the live session.
type Snapshot struct {
	SessionID    string
	Role         session.Role
	State        session.State
	RoomID       string
	PeerPresent  bool
	ConnectionID string
	Connected    bool
	ChunksSent   int
	TotalChunks  int
	Received     int
	RequestBusy  bool
}

var ErrStopped = errors.New("coordinator stopped")

// Snapshot queries the loop for the current session state.
func (c *Coordinator) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case c.events <- snapshotReq{reply: reply}:
	case <-c.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (c *Coordinator) snapshot() Snapshot {
	s := c.session
	snap := Snapshot{
		SessionID:    s.ID,
		Role:         s.Role,
		State:        s.State,
		RoomID:       s.RoomID,
		PeerPresent:  s.PeerPresent,
		ConnectionID: c.connectionID,
		Connected:    c.connected,
		ChunksSent:   s.ChunksSent,
		TotalChunks:  s.TotalChunks,
	}
	if s.Buffer != nil {
		snap.Received = s.Buffer.Len()
		if s.Role == session.Receiver {
			snap.TotalChunks = s.Buffer.TotalChunks()
		}
	}
	_, snap.RequestBusy = c.gate.Pending()
	return snap
}

// post delivers an event to the loop. It gives up once the loop has exited.
func (c *Coordinator) post(ev loopEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// enqueue schedules an event to run on the loop right after the current one.
func (c *Coordinator) enqueue(ev loopEvent) {
	c.queue = append(c.queue, ev)
}

func (c *Coordinator) drainQueue() {
	for len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue = c.queue[1:]
		c.handleLoopEvent(ev)
	}
}

func (c *Coordinator) publish(msg tea.Msg) {
	select {
	case c.uiMessages <- msg:
	case <-c.stop:
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (c *Coordinator) sendAndLogError(baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	c.publish(appevents.NoticeMsg{Level: appevents.LevelError, Text: baseMessage + ": " + err.Error()})
}

func (c *Coordinator) status(text string) {
	c.publish(appevents.StatusMsg{Text: text})
}

func (c *Coordinator) warn(text string) {
	c.publish(appevents.NoticeMsg{Level: appevents.LevelWarning, Text: text})
}

func (c *Coordinator) shutdown() {
	c.stopTimers()
	c.closeChunker()
	slog.Info("Coordinator stopped")
}

package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"

	"github.com/JNickson/kubelog-viewer/internal/stream"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var ErrConnection = errors.New("connection error")

// Conn is a message oriented, full duplex transport.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(reason string) error
}

type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// CloseError is returned by Conn.Read when the remote side closed the
// connection with a close frame.
type CloseError struct {
	Code   int
	Reason string
	// Normal is true for a clean shutdown (normal closure or going away).
	Normal bool
}

func (e *CloseError) Error() string {
	return "connection closed: " + e.Reason
}

type EventKind int

const (
	EventMessage EventKind = iota
	EventClose
	EventFailure
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	case EventFailure:
		return "failure"
	}
	return "unknown"
}

// Event is delivered for every inbound frame, followed by exactly one
// terminal close or failure event. A handle closed locally stops emitting.
type Event struct {
	Handle *Handle
	Kind   EventKind
	Frame  []byte
	Reason string
	Err    error
}

type Manager struct {
	dialer Dialer
	logger *slog.Logger
}

func NewManager(dialer Dialer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dialer: dialer, logger: logger}
}

// Open dials endpoint, sends req exactly once and starts delivering events to
// sink. ctx bounds only the dial and the request write; the stream itself
// lives until Close or a terminal event.
func (m *Manager) Open(
	ctx context.Context,
	endpoint string,
	req stream.Request,
	sink chan<- Event,
) (*Handle, error) {
	if err := validateEndpoint(endpoint); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "encode stream request"), ErrConnection)
	}

	conn, err := m.dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "dial %s", endpoint), ErrConnection)
	}

	if err := conn.Write(ctx, payload); err != nil {
		_ = conn.Close("request not sent")
		return nil, errors.Mark(errors.Wrap(err, "send stream request"), ErrConnection)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	h := &Handle{
		ID:       uuid.NewString(),
		Endpoint: endpoint,
		conn:     conn,
		ctx:      readCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		logger:   m.logger,
	}

	m.logger.Debug("stream connection opened", "connection", h.ID, "endpoint", endpoint)

	go h.readLoop(sink)

	return h, nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "invalid endpoint %q", endpoint), ErrConnection)
	}

	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return errors.Mark(errors.Newf("invalid endpoint %q: unsupported scheme", endpoint), ErrConnection)
	}

	if u.Host == "" {
		return errors.Mark(errors.Newf("invalid endpoint %q: missing host", endpoint), ErrConnection)
	}

	return nil
}

// Handle owns one open connection.
type Handle struct {
	ID       string
	Endpoint string

	conn   Conn
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	once     sync.Once
	done     chan struct{}
	finished chan struct{}
}

// Close terminates the connection and waits for its reader to exit. Closing a
// nil or already closed handle is a no-op.
func (h *Handle) Close() {
	if h == nil {
		return
	}

	h.once.Do(func() {
		close(h.done)
		h.cancel()

		if err := h.conn.Close("stream stopped"); err != nil {
			h.logger.Debug("stream connection close", "connection", h.ID, "error", err)
		}

		<-h.finished

		h.logger.Debug("stream connection closed", "connection", h.ID)
	})
}

func (h *Handle) readLoop(sink chan<- Event) {
	defer close(h.finished)

	for {
		data, err := h.conn.Read(h.ctx)
		if err != nil {
			h.emit(sink, h.terminal(err))
			return
		}

		if !h.emit(sink, Event{Handle: h, Kind: EventMessage, Frame: data}) {
			return
		}
	}
}

func (h *Handle) terminal(err error) Event {
	var ce *CloseError
	if errors.As(err, &ce) && ce.Normal {
		return Event{Handle: h, Kind: EventClose, Reason: ce.Reason}
	}

	return Event{
		Handle: h,
		Kind:   EventFailure,
		Reason: err.Error(),
		Err:    errors.Mark(errors.Wrap(err, "stream dropped"), ErrConnection),
	}
}

// emit delivers ev unless the handle has been closed locally.
func (h *Handle) emit(sink chan<- Event, ev Event) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case sink <- ev:
		return true
	case <-h.done:
		return false
	}
}

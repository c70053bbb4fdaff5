package connection

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/coder/websocket"
)

const (
	defaultReadLimit    = 4 * 1024 * 1024
	defaultCloseTimeout = 250 * time.Millisecond
)

// WebsocketDialer opens text-frame websocket connections.
type WebsocketDialer struct {
	ReadLimit int64
	// CloseTimeout bounds the close handshake. A remote that does not answer
	// in time has its connection cut.
	CloseTimeout time.Duration
	Options      *websocket.DialOptions
}

func NewWebsocketDialer(readLimit int64) *WebsocketDialer {
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	return &WebsocketDialer{ReadLimit: readLimit, CloseTimeout: defaultCloseTimeout}
}

func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, d.Options)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(d.ReadLimit)

	closeTimeout := d.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = defaultCloseTimeout
	}

	return &wsConn{conn: conn, closeTimeout: closeTimeout}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	closeTimeout time.Duration
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &CloseError{
				Code:   int(ce.Code),
				Reason: ce.Reason,
				Normal: ce.Code == websocket.StatusNormalClosure || ce.Code == websocket.StatusGoingAway,
			}
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Close attempts a normal closure and cuts the connection if the remote does
// not complete the handshake within closeTimeout.
func (c *wsConn) Close(reason string) error {
	result := make(chan error, 1)
	go func() {
		result <- c.conn.Close(websocket.StatusNormalClosure, reason)
	}()

	timer := time.NewTimer(c.closeTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			_ = c.conn.CloseNow()
			return err
		}
		return nil
	case <-timer.C:
		_ = c.conn.CloseNow()
		return errors.Newf("close handshake not answered within %s", c.closeTimeout)
	}
}

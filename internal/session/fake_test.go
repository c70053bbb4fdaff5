package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/JNickson/kubelog-viewer/internal/capability"
	"github.com/JNickson/kubelog-viewer/internal/connection"
	"github.com/JNickson/kubelog-viewer/internal/stream"
)

type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	dialErr error
}

func (d *fakeDialer) Dial(context.Context, string) (connection.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := &fakeConn{
		frames:  make(chan []byte, 16),
		readErr: make(chan error, 1),
	}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type fakeConn struct {
	frames  chan []byte
	readErr chan error

	mu      sync.Mutex
	written [][]byte
	closes  int
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case err := <-c.readErr:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close(string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) request() stream.Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	var req stream.Request
	if len(c.written) > 0 {
		_ = json.Unmarshal(c.written[0], &req)
	}
	return req
}

func (c *fakeConn) send(frame string) {
	c.frames <- []byte(frame)
}

type restartCall struct {
	clusterURL string
	namespace  string
	pod        string
	token      capability.Token
}

type fakeRestarter struct {
	calls chan restartCall
}

func (r *fakeRestarter) Restart(_ context.Context, clusterURL, namespace, pod string, token capability.Token) error {
	r.calls <- restartCall{clusterURL: clusterURL, namespace: namespace, pod: pod, token: token}
	return nil
}

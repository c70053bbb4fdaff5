package runtime

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JNickson/kubelog-viewer/internal/capability"
	"github.com/JNickson/kubelog-viewer/internal/config"
	"github.com/JNickson/kubelog-viewer/internal/connection"
	"github.com/JNickson/kubelog-viewer/internal/directory"
	"github.com/JNickson/kubelog-viewer/internal/metrics"
	"github.com/JNickson/kubelog-viewer/internal/restart"
	"github.com/JNickson/kubelog-viewer/internal/session"
	"github.com/JNickson/kubelog-viewer/internal/stream"
	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/mo"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	clusters []directory.ClusterResources
	err      error
	scopes   []capability.Scope
}

func (d *fakeDirectory) ResolveResources(context.Context, directory.Entity) ([]directory.ClusterResources, error) {
	return d.clusters, d.err
}

func (d *fakeDirectory) ResolveResourcesWithCapabilities(
	_ context.Context,
	_ directory.Entity,
	scopes []capability.Scope,
) ([]directory.ClusterResources, error) {
	d.scopes = scopes
	return d.clusters, d.err
}

func testSettings() config.Settings {
	return config.Settings{
		Addr:              ":0",
		DirectoryScopes:   "view,restart",
		DiscoveryTimeout:  5 * time.Second,
		BufferCapacity:    100,
		MinRestartVersion: "0.9.0",
	}
}

func testEntity() directory.Entity {
	return directory.Entity{Kind: "Component", Metadata: directory.EntityMetadata{Name: "orders"}}
}

// logServer accepts one stream request and answers with frames, then waits
// for the client to go away.
func logServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		if _, _, err := c.Read(r.Context()); err != nil {
			return
		}
		for _, f := range frames {
			if err := c.Write(r.Context(), websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := c.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testApp struct {
	app     *App
	server  *httptest.Server
	metrics *metrics.Metrics
}

func newTestApp(t *testing.T, dir *fakeDirectory) *testApp {
	t.Helper()

	m := metrics.New()
	app := New(testSettings(), Deps{
		Directory: dir,
		Entity:    testEntity(),
		Connector: connection.NewManager(connection.NewWebsocketDialer(0), nil),
		Restarter: restart.NewClient(nil, nil),
		Metrics:   m,
	})
	app.Discover(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.session.Run(ctx)
	}()

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	return &testApp{app: app, server: srv, metrics: m}
}

func (a *testApp) do(t *testing.T, method, path string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, a.server.URL+path, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (a *testApp) snapshot(t *testing.T) session.Snapshot {
	t.Helper()

	code, body := a.do(t, http.MethodGet, "/api/v1/session")
	require.Equal(t, http.StatusOK, code)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

func TestAppStreamsLogs(t *testing.T) {
	logs := logServer(t,
		`{"namespace":"default","podName":"api-0","type":"log","text":"hello"}`,
		`{"namespace":"default","podName":"api-0","type":"warning","text":"slow start"}`,
		`{"namespace":"default","podName":"api-0","type":"log","text":"ready"}`,
	)

	dir := &fakeDirectory{clusters: []directory.ClusterResources{{
		Name: "prod",
		URL:  "ws" + strings.TrimPrefix(logs.URL, "http"),
		Pods: []directory.Pod{{
			Namespace:    "default",
			Name:         "api-0",
			Capabilities: capability.Set{View: mo.Some(capability.Token("view-token"))},
		}},
	}}}
	a := newTestApp(t, dir)

	require.Equal(t, []capability.Scope{capability.ScopeView, capability.ScopeRestart}, dir.scopes)

	code, _ := a.do(t, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, code)

	code, _ = a.do(t, http.MethodPost, "/api/v1/session/cluster?name=prod")
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPost, "/api/v1/session/namespace?name=default")
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPost, "/api/v1/session/start")
	require.Equal(t, http.StatusOK, code)

	var snap session.Snapshot
	require.Eventually(t, func() bool {
		snap = a.snapshot(t)
		return len(snap.Messages) == 2
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, session.PhaseStreaming, snap.Phase)
	require.Equal(t, "hello", snap.Messages[0].Text)
	require.Equal(t, "ready", snap.Messages[1].Text)
	require.Equal(t, 1, snap.StatusCounts[stream.KindWarning])

	require.Equal(t, float64(2), testutil.ToFloat64(a.metrics.FramesTotal.WithLabelValues("log")))
	require.Equal(t, float64(1), testutil.ToFloat64(a.metrics.ActiveConnections))

	code, body := a.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "kubelog_frames_total")

	code, body = a.do(t, http.MethodGet, "/api/v1/session/download")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "hello\nready\n", string(body))

	code, _ = a.do(t, http.MethodPost, "/api/v1/session/stop")
	require.Equal(t, http.StatusOK, code)

	snap = a.snapshot(t)
	require.Equal(t, session.PhaseStopped, snap.Phase)
	require.Equal(t, session.SeparatorText, snap.Messages[len(snap.Messages)-1].Text)
	require.Equal(t, float64(0), testutil.ToFloat64(a.metrics.ActiveConnections))
}

func TestAppFollow(t *testing.T) {
	logs := logServer(t, `{"namespace":"default","podName":"api-0","type":"log","text":"hello"}`)

	a := newTestApp(t, &fakeDirectory{clusters: []directory.ClusterResources{{
		Name: "prod",
		URL:  "ws" + strings.TrimPrefix(logs.URL, "http"),
		Pods: []directory.Pod{{
			Namespace:    "default",
			Name:         "api-0",
			Capabilities: capability.Set{ScopedView: mo.Some(capability.Token("scoped"))},
		}},
	}}})

	a.do(t, http.MethodPost, "/api/v1/session/cluster?name=prod")
	a.do(t, http.MethodPost, "/api/v1/session/namespace?name=default")
	a.do(t, http.MethodPost, "/api/v1/session/start")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.server.URL+"/api/v1/session/follow?format=text&fromStart=true&frequencyMs=100", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	require.Equal(t, "hello", scanner.Text())
}

func TestAppFollowReplaysTailLines(t *testing.T) {
	logs := logServer(t,
		`{"namespace":"default","podName":"api-0","type":"log","text":"one"}`,
		`{"namespace":"default","podName":"api-0","type":"log","text":"two"}`,
		`{"namespace":"default","podName":"api-0","type":"log","text":"three"}`,
	)

	a := newTestApp(t, &fakeDirectory{clusters: []directory.ClusterResources{{
		Name: "prod",
		URL:  "ws" + strings.TrimPrefix(logs.URL, "http"),
		Pods: []directory.Pod{{
			Namespace:    "default",
			Name:         "api-0",
			Capabilities: capability.Set{View: mo.Some(capability.Token("view"))},
		}},
	}}})

	a.do(t, http.MethodPost, "/api/v1/session/cluster?name=prod")
	a.do(t, http.MethodPost, "/api/v1/session/namespace?name=default")
	a.do(t, http.MethodPost, "/api/v1/session/start")

	require.Eventually(t, func() bool {
		_, body := a.do(t, http.MethodGet, "/api/v1/session")
		var snap struct {
			Messages []json.RawMessage `json:"messages"`
		}
		return json.Unmarshal(body, &snap) == nil && len(snap.Messages) == 3
	}, 5*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.server.URL+"/api/v1/session/follow?format=text&tailLines=2&frequencyMs=100", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	require.Equal(t, "two", scanner.Text())
	require.True(t, scanner.Scan())
	require.Equal(t, "three", scanner.Text())
}

func TestAppDiscoveryFailure(t *testing.T) {
	a := newTestApp(t, &fakeDirectory{err: &directory.DiscoveryError{StatusCode: 502, Cause: "bad gateway"}})

	code, body := a.do(t, http.MethodGet, "/api/v1/clusters")
	require.Equal(t, http.StatusOK, code)

	var got struct {
		Entity         string                 `json:"entity"`
		Availability   directory.Availability `json:"availability"`
		DiscoveryError string                 `json:"discoveryError"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, "orders", got.Entity)
	require.Equal(t, directory.AvailabilityNoClusters, got.Availability)
	require.Contains(t, got.DiscoveryError, "bad gateway")

	code, _ = a.do(t, http.MethodPost, "/api/v1/session/cluster?name=prod")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodPost, "/api/v1/session/start")
	require.Equal(t, http.StatusConflict, code)
}

func TestAppRejectsBadFollowOptions(t *testing.T) {
	a := newTestApp(t, &fakeDirectory{})

	code, body := a.do(t, http.MethodGet, "/api/v1/session/follow?format=xml")
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, string(body), "invalid format")
}

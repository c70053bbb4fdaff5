package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/JNickson/kubelog-viewer/internal/buffer"
	"github.com/JNickson/kubelog-viewer/internal/capability"
	"github.com/JNickson/kubelog-viewer/internal/connection"
	"github.com/JNickson/kubelog-viewer/internal/directory"
	"github.com/JNickson/kubelog-viewer/internal/export"
	"github.com/JNickson/kubelog-viewer/internal/metrics"
	"github.com/JNickson/kubelog-viewer/internal/restart"
	"github.com/JNickson/kubelog-viewer/internal/status"
	"github.com/JNickson/kubelog-viewer/internal/stream"
	"github.com/JNickson/kubelog-viewer/internal/utils"
	"github.com/JNickson/kubelog-viewer/internal/version"
	"github.com/cockroachdb/errors"
	"github.com/samber/mo"
)

const (
	eventBacklog   = 256
	restartTimeout = 30 * time.Second
)

// SeparatorText marks the point where a stream was stopped.
var SeparatorText = strings.Repeat("=", 120)

type Connector interface {
	Open(ctx context.Context, endpoint string, req stream.Request, sink chan<- connection.Event) (*connection.Handle, error)
}

type Restarter interface {
	Restart(ctx context.Context, clusterURL, namespace, pod string, token capability.Token) error
}

type Config struct {
	// Entity names the catalog entity; it ends up in export filenames.
	Entity   string
	Clusters []directory.ClusterResources
	// Capacity bounds the visible buffer and is advertised to the remote side.
	Capacity          int
	MinRestartVersion string
	Connector         Connector
	Restarter         Restarter
	Metrics           *metrics.Metrics
	Logger            *slog.Logger
}

// Session owns one logical log stream. All state is confined to the Run
// goroutine; public methods hand work to it and wait for the result, so
// commands and inbound frames are processed one at a time.
type Session struct {
	entity            string
	clusters          []directory.ClusterResources
	minRestartVersion string
	connector         Connector
	restarter         Restarter
	metrics           *metrics.Metrics
	logger            *slog.Logger

	cmds   chan func()
	events chan connection.Event
	done   chan struct{}

	cluster   mo.Option[string]
	namespace mo.Option[string]
	phase     Phase
	visible   *buffer.Bounded[stream.Message]
	pending   buffer.Queue[stream.Message]
	status    *status.Aggregator
	options   Options
	conn      *connection.Handle
	notice    string

	// appended counts every message ever added to visible; it is the cursor
	// space used by Tail.
	appended uint64
}

func New(cfg Config) *Session {
	if cfg.Capacity < 1 {
		cfg.Capacity = buffer.DefaultCapacity
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Restarter == nil {
		cfg.Restarter = restart.NewClient(nil, cfg.Logger)
	}

	return &Session{
		entity:            cfg.Entity,
		clusters:          cfg.Clusters,
		minRestartVersion: cfg.MinRestartVersion,
		connector:         cfg.Connector,
		restarter:         cfg.Restarter,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
		cmds:              make(chan func()),
		events:            make(chan connection.Event, eventBacklog),
		done:              make(chan struct{}),
		phase:             PhaseIdle,
		visible:           buffer.NewBounded[stream.Message](cfg.Capacity),
		status:            status.New(),
	}
}

// Run processes commands and connection events until ctx is done, then
// closes any open connection. It must be called exactly once.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	defer s.closeConnection()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.cmds:
			fn()
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)

	select {
	case s.cmds <- func() { result <- fn() }:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-result
}

// Clusters returns the resource sets the session was created with.
func (s *Session) Clusters() []directory.ClusterResources {
	return s.clusters
}

// SelectCluster switches to another cluster. Any open stream is closed and
// everything collected for the prior selection is discarded.
func (s *Session) SelectCluster(ctx context.Context, name string) error {
	return s.do(ctx, func() error {
		if _, ok := directory.Find(s.clusters, name); !ok {
			return errors.Wrapf(ErrUnknownCluster, "%q", name)
		}

		s.reset()
		s.cluster = mo.Some(name)
		s.namespace = mo.None[string]()
		s.phase = PhaseStopped

		s.logger.Info("cluster selected", "cluster", name)
		return nil
	})
}

// SelectNamespace switches namespace within the selected cluster. Selecting
// the current namespace again leaves a live stream untouched.
func (s *Session) SelectNamespace(ctx context.Context, namespace string) error {
	return s.do(ctx, func() error {
		cluster, ok := s.selectedCluster()
		if !ok {
			return errors.Wrap(ErrNoSelection, "select a cluster first")
		}

		if current, ok := s.namespace.Get(); ok && current == namespace {
			return nil
		}

		if !slices.Contains(cluster.Namespaces(), namespace) {
			return errors.Wrapf(ErrUnknownNamespace, "%q in cluster %q", namespace, cluster.Name)
		}

		s.reset()
		s.namespace = mo.Some(namespace)
		s.phase = PhaseStopped

		s.logger.Info("namespace selected", "cluster", cluster.Name, "namespace", namespace)
		return nil
	})
}

// Start opens a stream for the current selection, or resumes a paused one.
func (s *Session) Start(ctx context.Context) error {
	return s.do(ctx, func() error { return s.start(ctx) })
}

func (s *Session) Pause(ctx context.Context) error {
	return s.do(ctx, func() error {
		if s.phase == PhaseStreaming {
			s.phase = PhasePaused
		}
		return nil
	})
}

// Stop ends the stream, marking the cut point with a separator.
func (s *Session) Stop(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.stop()
		return nil
	})
}

// Reconfigure stores opts. A streaming session reconnects so the remote side
// picks up the new settings, unless only local settings changed.
func (s *Session) Reconfigure(ctx context.Context, opts Options) error {
	return s.do(ctx, func() error {
		return s.reconfigure(ctx, opts)
	})
}

// UpdateOptions applies patch to the options current when the command runs,
// so concurrent partial updates never overwrite each other's fields.
func (s *Session) UpdateOptions(ctx context.Context, patch OptionsPatch) error {
	return s.do(ctx, func() error {
		return s.reconfigure(ctx, patch.apply(s.options))
	})
}

func (s *Session) reconfigure(ctx context.Context, opts Options) error {
	prev := s.options
	s.options = opts

	if s.phase != PhaseStreaming || !prev.requiresReconnect(opts) {
		return nil
	}

	s.closeConnection()
	s.phase = PhaseStopped
	return s.start(ctx)
}

// Restart asks the cluster to restart the selected pod. The request runs in
// the background and its outcome is only logged.
func (s *Session) Restart(ctx context.Context) error {
	return s.do(ctx, func() error {
		cluster, namespace, ok := s.selection()
		if !ok {
			return errors.Wrap(ErrNoSelection, "select a namespace first")
		}

		pod, token, ok := s.restartTarget(cluster, namespace)
		if !ok {
			s.addStatus(stream.KindError, fmt.Sprintf("restart is not available in namespace %s", namespace))
			return errors.Wrapf(ErrNoCapability, "restart in %s", namespace)
		}

		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), restartTimeout)
			defer cancel()

			if err := s.restarter.Restart(rctx, cluster.URL, namespace, pod.Name, token); err != nil {
				s.logger.Warn("pod restart failed",
					"cluster", cluster.Name,
					"namespace", namespace,
					"pod", pod.Name,
					"error", err,
				)
			}
		}()

		s.addStatus(stream.KindInfo, fmt.Sprintf("restart requested for pod %s/%s", namespace, pod.Name))
		return nil
	})
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

func (s *Session) StatusMessages(ctx context.Context, kind stream.Kind) ([]stream.Message, error) {
	var out []stream.Message
	err := s.do(ctx, func() error {
		out = slices.Collect(s.status.FilterByKind(kind))
		return nil
	})
	return out, err
}

func (s *Session) ClearStatus(ctx context.Context, kind stream.Kind) error {
	return s.do(ctx, func() error {
		s.status.Clear(kind)
		return nil
	})
}

func (s *Session) DismissNotice(ctx context.Context) error {
	return s.do(ctx, func() error {
		s.notice = ""
		return nil
	})
}

// Export returns the download name and the visible messages.
func (s *Session) Export(ctx context.Context) (string, []stream.Message, error) {
	var (
		name string
		msgs []stream.Message
	)
	err := s.do(ctx, func() error {
		name = export.Filename(s.cluster.OrEmpty(), s.namespace.OrEmpty(), s.entity)
		msgs = s.visible.Items()
		return nil
	})
	return name, msgs, err
}

// Tail returns the visible messages appended at or after cursor along with the
// cursor to pass next time. Messages that were evicted or cleared in between
// are skipped.
func (s *Session) Tail(ctx context.Context, cursor uint64) ([]stream.Message, uint64, error) {
	var (
		out  []stream.Message
		next uint64
	)
	err := s.do(ctx, func() error {
		items := s.visible.Items()
		first := s.appended - uint64(len(items))
		cursor = min(max(cursor, first), s.appended)

		out = items[cursor-first:]
		next = s.appended
		return nil
	})
	return out, next, err
}

func (s *Session) start(ctx context.Context) error {
	switch s.phase {
	case PhasePaused:
		s.flushPending()
		s.phase = PhaseStreaming
		return nil
	case PhaseStreaming:
		return nil
	}

	cluster, namespace, ok := s.selection()
	if !ok {
		return errors.Wrap(ErrNoSelection, "select a namespace first")
	}

	pod, token, scope, ok := streamTarget(cluster, namespace)
	if !ok {
		s.addStatus(stream.KindError, fmt.Sprintf("no pod in namespace %s grants log access", namespace))
		return errors.Wrapf(ErrNoCapability, "view logs in %s", namespace)
	}

	req := stream.Request{
		CapabilityToken:  token,
		Scope:            scope,
		Namespace:        namespace,
		PodName:          pod.Name,
		Container:        streamContainer(pod),
		ViewKind:         stream.DefaultViewKind,
		IncludeTimestamp: s.options.IncludeTimestamp,
		IncludePrevious:  s.options.IncludePrevious,
		MaxMessages:      uint(s.visible.Cap()),
	}

	h, err := s.connector.Open(ctx, cluster.URL, req, s.events)
	if err != nil {
		s.metrics.ConnectionFailures.Inc()
		s.logger.Warn("failed to open log stream",
			"cluster", cluster.Name,
			"namespace", namespace,
			"pod", pod.Name,
			"error", err,
		)
		s.connectionError(err)
		s.phase = PhaseStopped
		return nil
	}

	s.conn = h
	s.metrics.ConnectionsOpened.Inc()
	s.metrics.ActiveConnections.Inc()

	s.visible.Clear()
	s.phase = PhaseStreaming

	s.logger.Info("log stream started",
		"cluster", cluster.Name,
		"namespace", namespace,
		"pod", pod.Name,
		"connection", h.ID,
	)
	return nil
}

func (s *Session) stop() {
	if s.phase != PhaseStreaming && s.phase != PhasePaused {
		return
	}

	s.flushPending()
	s.appendVisible(stream.Message{
		Namespace: s.namespace.OrEmpty(),
		Kind:      stream.KindLog,
		Text:      SeparatorText,
		Timestamp: mo.Some(utils.Now()),
	})
	s.closeConnection()
	s.phase = PhaseStopped

	s.logger.Info("log stream stopped", "cluster", s.cluster.OrEmpty(), "namespace", s.namespace.OrEmpty())
}

func (s *Session) handleEvent(ev connection.Event) {
	if ev.Handle == nil || ev.Handle != s.conn {
		return
	}

	switch ev.Kind {
	case connection.EventMessage:
		s.receive(ev.Frame)
	case connection.EventClose:
		s.endStream()
		s.addStatus(stream.KindInfo, "stream closed by remote: "+ev.Reason)
	case connection.EventFailure:
		s.metrics.ConnectionFailures.Inc()
		s.logger.Warn("log stream dropped", "connection", ev.Handle.ID, "error", ev.Err)
		s.endStream()
		s.connectionError(ev.Err)
	}
}

func (s *Session) receive(frame []byte) {
	if s.phase != PhaseStreaming && s.phase != PhasePaused {
		return
	}

	msg, err := stream.Classify(frame)
	if err != nil {
		s.metrics.MalformedFrames.Inc()
		s.logger.Debug("discarding malformed frame", "error", err, "frame", string(frame))
		return
	}

	s.metrics.FramesTotal.WithLabelValues(string(msg.Kind)).Inc()

	if msg.Kind.IsStatus() {
		s.status.Add(msg)
		if msg.Kind == stream.KindError {
			s.notice = msg.Text
		}
		return
	}

	if s.phase == PhasePaused {
		s.pending.Append(msg)
		s.metrics.PendingMessages.Set(float64(s.pending.Len()))
		return
	}

	s.appendVisible(msg)
}

// endStream handles a connection that went away on its own.
func (s *Session) endStream() {
	s.flushPending()
	s.closeConnection()
	s.phase = PhaseStopped
}

func (s *Session) connectionError(err error) {
	text := "connection error: " + err.Error()
	s.addStatus(stream.KindError, text)
	s.notice = text
}

func (s *Session) appendVisible(msgs ...stream.Message) {
	s.appended += uint64(len(msgs))
	if evicted := s.visible.AppendAll(msgs); evicted > 0 {
		s.metrics.EvictionsTotal.Add(float64(evicted))
	}
}

func (s *Session) flushPending() {
	s.appendVisible(s.pending.Drain()...)
	s.metrics.PendingMessages.Set(0)
}

func (s *Session) closeConnection() {
	if s.conn == nil {
		return
	}
	s.conn.Close()
	s.conn = nil
	s.metrics.ActiveConnections.Dec()
}

// reset drops everything tied to the current selection.
func (s *Session) reset() {
	s.closeConnection()
	s.visible.Clear()
	s.pending.Drain()
	s.metrics.PendingMessages.Set(0)
	s.status.Reset()
	s.notice = ""
}

func (s *Session) addStatus(kind stream.Kind, text string) {
	s.status.Add(stream.Message{
		Namespace: s.namespace.OrEmpty(),
		Kind:      kind,
		Text:      text,
		Timestamp: mo.Some(utils.Now()),
	})
	if kind == stream.KindError {
		s.notice = text
	}
}

func (s *Session) selectedCluster() (directory.ClusterResources, bool) {
	name, ok := s.cluster.Get()
	if !ok {
		return directory.ClusterResources{}, false
	}
	return directory.Find(s.clusters, name)
}

func (s *Session) selection() (directory.ClusterResources, string, bool) {
	cluster, ok := s.selectedCluster()
	if !ok {
		return directory.ClusterResources{}, "", false
	}
	namespace, ok := s.namespace.Get()
	if !ok {
		return directory.ClusterResources{}, "", false
	}
	return cluster, namespace, true
}

// streamTarget picks the pod to stream from: the first one holding a plain
// view capability, otherwise the first one holding a scoped view capability.
func streamTarget(cluster directory.ClusterResources, namespace string) (directory.Pod, capability.Token, capability.Scope, bool) {
	pods := cluster.PodsIn(namespace)

	for _, p := range pods {
		if t, ok := p.Capabilities.View.Get(); ok && t != "" {
			return p, t, capability.ScopeFilter, true
		}
	}
	for _, p := range pods {
		if t, scope, ok := p.Capabilities.StreamToken(); ok {
			return p, t, scope, true
		}
	}
	return directory.Pod{}, "", "", false
}

// streamContainer names the container to stream when the pod has exactly one.
// Multi-container pods are left to the backend's default.
func streamContainer(p directory.Pod) string {
	if len(p.Containers) == 1 {
		return p.Containers[0]
	}
	return ""
}

func (s *Session) restartTarget(cluster directory.ClusterResources, namespace string) (directory.Pod, capability.Token, bool) {
	if cluster.Version != "" && s.minRestartVersion != "" && !version.AtLeast(cluster.Version, s.minRestartVersion) {
		return directory.Pod{}, "", false
	}

	for _, p := range cluster.PodsIn(namespace) {
		if t, ok := p.Capabilities.RestartToken(); ok {
			return p, t, true
		}
	}
	return directory.Pod{}, "", false
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		Entity:       s.entity,
		Cluster:      s.cluster.OrEmpty(),
		Namespace:    s.namespace.OrEmpty(),
		Namespaces:   []NamespaceEntry{},
		Phase:        s.phase,
		Options:      s.options,
		Messages:     s.visible.Items(),
		Pending:      s.pending.Len(),
		StatusCounts: s.status.Counts(),
		Notice:       s.notice,
	}

	cluster, hasCluster := s.selectedCluster()
	if hasCluster {
		for _, ns := range cluster.Namespaces() {
			snap.Namespaces = append(snap.Namespaces, NamespaceEntry{Name: ns, Viewable: cluster.Viewable(ns)})
		}
	}

	snap.Controls = s.controls()
	snap.Hint = s.hint(hasCluster)
	return snap
}

func (s *Session) controls() Controls {
	var c Controls

	cluster, namespace, ok := s.selection()
	if ok {
		c.Play = s.phase == PhasePaused || (s.phase != PhaseStreaming && cluster.Viewable(namespace))
		c.Options = s.phase != PhasePaused
		_, _, c.Restart = s.restartTarget(cluster, namespace)
	}

	c.Pause = s.phase == PhaseStreaming
	c.Stop = s.phase == PhaseStreaming || s.phase == PhasePaused
	c.Download = s.visible.Len() > 0
	return c
}

func (s *Session) hint(hasCluster bool) string {
	switch {
	case !hasCluster:
		return "Select a cluster to see where this entity runs."
	case s.namespace.IsAbsent():
		return "Select namespace in order to decide which pod logs to view."
	case (s.phase == PhaseIdle || s.phase == PhaseStopped) && s.visible.Len() == 0:
		return "Press PLAY to start viewing your log."
	}
	return ""
}

package session

import (
	"github.com/JNickson/kubelog-viewer/internal/stream"
	"github.com/cockroachdb/errors"
	"github.com/samber/mo"
)

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStreaming Phase = "streaming"
	PhasePaused    Phase = "paused"
	PhaseStopped   Phase = "stopped"
)

var (
	ErrNoCapability     = errors.New("no usable capability")
	ErrNoSelection      = errors.New("nothing selected")
	ErrUnknownCluster   = errors.New("unknown cluster")
	ErrUnknownNamespace = errors.New("unknown namespace")
	ErrClosed           = errors.New("session closed")
)

// Options are the stream settings owned by the session. Timestamp and
// previous are sent to the remote side; follow only drives local scrolling.
type Options struct {
	IncludeTimestamp bool `json:"timestamp"`
	IncludePrevious  bool `json:"previous"`
	Follow           bool `json:"follow"`
}

// requiresReconnect reports whether moving from o to next changes anything
// the remote side needs to know about.
func (o Options) requiresReconnect(next Options) bool {
	return o.IncludeTimestamp != next.IncludeTimestamp || o.IncludePrevious != next.IncludePrevious
}

// OptionsPatch changes some options and keeps the rest. A None field keeps
// the current value.
type OptionsPatch struct {
	IncludeTimestamp mo.Option[bool]
	IncludePrevious  mo.Option[bool]
	Follow           mo.Option[bool]
}

func (p OptionsPatch) apply(o Options) Options {
	return Options{
		IncludeTimestamp: p.IncludeTimestamp.OrElse(o.IncludeTimestamp),
		IncludePrevious:  p.IncludePrevious.OrElse(o.IncludePrevious),
		Follow:           p.Follow.OrElse(o.Follow),
	}
}

type NamespaceEntry struct {
	Name     string `json:"name"`
	Viewable bool   `json:"viewable"`
}

// Controls tells the rendering layer which actions are currently available.
type Controls struct {
	Play     bool `json:"play"`
	Pause    bool `json:"pause"`
	Stop     bool `json:"stop"`
	Options  bool `json:"options"`
	Restart  bool `json:"restart"`
	Download bool `json:"download"`
}

// Snapshot is a consistent, copied view of the session.
type Snapshot struct {
	Entity       string              `json:"entity"`
	Cluster      string              `json:"cluster,omitempty"`
	Namespace    string              `json:"namespace,omitempty"`
	Namespaces   []NamespaceEntry    `json:"namespaces"`
	Phase        Phase               `json:"phase"`
	Options      Options             `json:"options"`
	Messages     []stream.Message    `json:"messages"`
	Pending      int                 `json:"pending"`
	StatusCounts map[stream.Kind]int `json:"statusCounts"`
	Controls     Controls            `json:"controls"`
	Notice       string              `json:"notice,omitempty"`
	Hint         string              `json:"hint,omitempty"`
}

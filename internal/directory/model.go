package directory

import (
	"encoding/json"

	"github.com/JNickson/kubelog-viewer/internal/capability"
	"github.com/samber/lo"
)

// Pod is one (cluster, namespace, pod) tuple and the capabilities granted on it.
type Pod struct {
	Namespace string
	Name      string
	// Containers is empty when the directory does not report them.
	Containers   []string
	Capabilities capability.Set
}

type wirePod struct {
	Namespace  string   `json:"namespace"`
	Name       string   `json:"name"`
	Containers []string `json:"containers,omitempty"`
}

func (p Pod) MarshalJSON() ([]byte, error) {
	caps, err := json.Marshal(p.Capabilities)
	if err != nil {
		return nil, err
	}
	base, err := json.Marshal(wirePod{Namespace: p.Namespace, Name: p.Name, Containers: p.Containers})
	if err != nil {
		return nil, err
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(caps, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

func (p *Pod) UnmarshalJSON(data []byte) error {
	var w wirePod
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var caps capability.Set
	if err := json.Unmarshal(data, &caps); err != nil {
		return err
	}
	*p = Pod{Namespace: w.Namespace, Name: w.Name, Containers: w.Containers, Capabilities: caps}
	return nil
}

// ClusterResources is what the directory discovered for an entity on one
// cluster. It is read-only once returned.
type ClusterResources struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	// URL is the websocket endpoint of the log streaming backend.
	URL string `json:"url"`
	// Version is the backend version, when the directory reports it.
	Version string `json:"version,omitempty"`
	Pods    []Pod  `json:"data"`
}

// Namespaces returns the distinct namespaces in first-seen order.
func (c ClusterResources) Namespaces() []string {
	return lo.Uniq(lo.Map(c.Pods, func(p Pod, _ int) string { return p.Namespace }))
}

// PodsIn returns the pods of one namespace, in directory order.
func (c ClusterResources) PodsIn(namespace string) []Pod {
	return lo.Filter(c.Pods, func(p Pod, _ int) bool { return p.Namespace == namespace })
}

// Viewable reports whether any pod in namespace can be streamed.
func (c ClusterResources) Viewable(namespace string) bool {
	return lo.SomeBy(c.PodsIn(namespace), func(p Pod) bool { return p.Capabilities.CanView() })
}

func Find(clusters []ClusterResources, name string) (ClusterResources, bool) {
	return lo.Find(clusters, func(c ClusterResources) bool { return c.Name == name })
}

type Availability string

const (
	AvailabilityNoClusters Availability = "no-clusters"
	AvailabilityNoPods     Availability = "no-pods"
	AvailabilityReady      Availability = "ready"
)

// Summarize tells apart the empty states shown instead of the stream view.
func Summarize(clusters []ClusterResources) Availability {
	if len(clusters) == 0 {
		return AvailabilityNoClusters
	}
	for _, c := range clusters {
		if len(c.Pods) > 0 {
			return AvailabilityReady
		}
	}
	return AvailabilityNoPods
}

package directory

import (
	"context"
	"log/slog"
	"slices"

	"github.com/JNickson/kubelog-viewer/internal/capability"
	"github.com/JNickson/kubelog-viewer/internal/pods"
	"github.com/samber/lo"
	"k8s.io/apimachinery/pkg/labels"
)

// KubeCluster describes the single cluster a KubeDirectory serves.
type KubeCluster struct {
	Name    string
	Title   string
	URL     string
	Version string
	// Capabilities are attached to every discovered pod.
	Capabilities capability.Set
}

// KubeDirectory resolves entities against one Kubernetes cluster by label,
// for setups without a remote directory service.
type KubeDirectory struct {
	pods    pods.Service
	cluster KubeCluster
	logger  *slog.Logger
}

func NewKubeDirectory(svc pods.Service, cluster KubeCluster, logger *slog.Logger) *KubeDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &KubeDirectory{pods: svc, cluster: cluster, logger: logger}
}

func (d *KubeDirectory) ResolveResources(ctx context.Context, entity Entity) ([]ClusterResources, error) {
	selector := labels.SelectorFromSet(labels.Set{LocationLabel: entity.KubernetesID()})

	found, err := d.pods.FetchPods(ctx, selector)
	if err != nil {
		return nil, &DiscoveryError{Cause: err.Error()}
	}

	out := ClusterResources{
		Name:    d.cluster.Name,
		Title:   d.cluster.Title,
		URL:     d.cluster.URL,
		Version: d.cluster.Version,
		Pods:    make([]Pod, 0, len(found)),
	}
	// Ready pods first so stream target selection prefers a serving replica.
	ordered := slices.Concat(
		lo.Filter(found, func(p pods.Pod, _ int) bool { return p.Ready }),
		lo.Filter(found, func(p pods.Pod, _ int) bool { return !p.Ready }),
	)

	for _, p := range ordered {
		out.Pods = append(out.Pods, Pod{
			Namespace:    p.Namespace,
			Name:         p.Name,
			Containers:   p.ContainerNames(),
			Capabilities: d.cluster.Capabilities,
		})
	}

	d.logger.Info("resolved entity pods",
		"entity", entity.Metadata.Name,
		"cluster", d.cluster.Name,
		"pods", len(out.Pods),
	)

	return []ClusterResources{out}, nil
}

func (d *KubeDirectory) ResolveResourcesWithCapabilities(
	ctx context.Context,
	entity Entity,
	scopes []capability.Scope,
) ([]ClusterResources, error) {
	clusters, err := d.ResolveResources(ctx, entity)
	if err != nil {
		return nil, err
	}
	for i := range clusters {
		for j := range clusters[i].Pods {
			clusters[i].Pods[j].Capabilities = clusters[i].Pods[j].Capabilities.Filter(scopes)
		}
	}
	return clusters, nil
}

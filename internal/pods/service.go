package pods

import (
	"context"

	"github.com/cockroachdb/errors"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"
)

type Service interface {
	FetchPods(ctx context.Context, selector labels.Selector) ([]Pod, error)
}

type PodService struct {
	kubeClient kubernetes.Interface
}

func NewPodService(kubeClient kubernetes.Interface) *PodService {
	return &PodService{kubeClient: kubeClient}
}

// FetchPods lists the running pods matching selector across all namespaces.
func (s *PodService) FetchPods(ctx context.Context, selector labels.Selector) ([]Pod, error) {
	list, err := s.kubeClient.CoreV1().
		Pods("").
		List(ctx, metav1.ListOptions{LabelSelector: selector.String()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list pods")
	}

	out := make([]Pod, 0, len(list.Items))

	for _, p := range list.Items {

		// Ignore pods not yet scheduled
		if p.Spec.NodeName == "" {
			continue
		}
		// Completed pods have nothing left to stream
		if p.Status.Phase == v1.PodSucceeded {
			continue
		}

		out = append(out, mapPod(p))
	}

	return out, nil
}

func mapPod(p v1.Pod) Pod {
	var (
		ready      = true
		containers []Container
	)

	if len(p.Status.ContainerStatuses) == 0 {
		ready = false
	}

	for _, cs := range p.Status.ContainerStatuses {
		containers = append(containers, Container{
			Name:  cs.Name,
			Ready: cs.Ready,
		})

		if !cs.Ready {
			ready = false
		}
	}

	return Pod{
		Name:       p.Name,
		Namespace:  p.Namespace,
		Ready:      ready,
		Containers: containers,
	}
}

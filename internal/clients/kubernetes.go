package clients

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewKubeConfig prefers the in-cluster config and falls back to kubeconfig,
// either the given path or ~/.kube/config.
func NewKubeConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		cfg, err := rest.InClusterConfig()
		if err == nil {
			slog.Info("Using in-cluster Kubernetes config")
			return cfg, nil
		}

		slog.Warn("In-cluster config failed, falling back to kubeconfig",
			"error", err,
			"host", os.Getenv("KUBERNETES_SERVICE_HOST"),
			"port", os.Getenv("KUBERNETES_SERVICE_PORT"),
		)

		home, _ := os.UserHomeDir()
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load kubeconfig")
	}

	slog.Info("Using local kubeconfig", "path", kubeconfig)
	return cfg, nil
}

func NewKubeClient(cfg *rest.Config) (*kubernetes.Clientset, error) {
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kube client")
	}

	slog.Info("Kubernetes client initialised")
	return client, nil
}

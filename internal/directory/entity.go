package directory

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// LocationLabel marks the Kubernetes objects that belong to a catalog entity.
const LocationLabel = "backstage.io/kubernetes-id"

// Entity is the catalog entity logs are viewed for. It is forwarded to the
// directory as-is.
type Entity struct {
	APIVersion string         `yaml:"apiVersion" json:"apiVersion"`
	Kind       string         `yaml:"kind" json:"kind"`
	Metadata   EntityMetadata `yaml:"metadata" json:"metadata"`
	Spec       map[string]any `yaml:"spec,omitempty" json:"spec,omitempty"`
}

type EntityMetadata struct {
	Name        string            `yaml:"name" json:"name"`
	Namespace   string            `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Title       string            `yaml:"title,omitempty" json:"title,omitempty"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Annotations map[string]string `yaml:"annotations,omitempty" json:"annotations,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// KubernetesID is the value pods are labelled with. It defaults to the
// entity name when the annotation is absent.
func (e Entity) KubernetesID() string {
	if id := e.Metadata.Annotations[LocationLabel]; id != "" {
		return id
	}
	return e.Metadata.Name
}

func LoadEntity(path string) (Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entity{}, errors.Wrapf(err, "read entity %s", path)
	}

	var e Entity
	if err := yaml.Unmarshal(data, &e); err != nil {
		return Entity{}, errors.Wrapf(err, "parse entity %s", path)
	}

	if e.Metadata.Name == "" {
		return Entity{}, errors.Newf("entity %s has no metadata.name", path)
	}

	return e, nil
}

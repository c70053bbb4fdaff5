package directory

import (
	"context"
	"fmt"

	"github.com/JNickson/kubelog-viewer/internal/capability"
	"github.com/cockroachdb/errors"
)

var ErrDiscovery = errors.New("discovery error")

// DiscoveryError is returned when the directory could not be queried.
type DiscoveryError struct {
	StatusCode int
	Cause      string
}

func (e *DiscoveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("discovery failed (%d): %s", e.StatusCode, e.Cause)
	}
	return "discovery failed: " + e.Cause
}

func (e *DiscoveryError) Is(target error) bool { return target == ErrDiscovery }

// Directory resolves the clusters and pods an entity runs on.
type Directory interface {
	ResolveResources(ctx context.Context, entity Entity) ([]ClusterResources, error)
	ResolveResourcesWithCapabilities(ctx context.Context, entity Entity, scopes []capability.Scope) ([]ClusterResources, error)
}

package stream

import "github.com/JNickson/kubelog-viewer/internal/capability"

const DefaultViewKind = "pod"

// Request parameterizes one connection. It is sent once, right after the
// transport is established; the remote side only honors it at that point.
type Request struct {
	CapabilityToken  capability.Token `json:"accessKey"`
	Scope            capability.Scope `json:"scope"`
	Namespace        string           `json:"namespace"`
	PodGroup         string           `json:"group"`
	PodSet           string           `json:"set"`
	PodName          string           `json:"pod"`
	Container        string           `json:"container"`
	ViewKind         string           `json:"view"`
	IncludeTimestamp bool             `json:"timestamp"`
	IncludePrevious  bool             `json:"previous"`
	// MaxMessages is advisory: it mirrors the local buffer capacity.
	MaxMessages uint `json:"maxMessages"`
}

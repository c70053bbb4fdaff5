package stream

import (
	"encoding/json"
	"time"

	"github.com/samber/mo"
)

type Kind string

const (
	KindLog     Kind = "log"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// StatusKinds lists the non-log kinds in severity order.
var StatusKinds = []Kind{KindInfo, KindWarning, KindError}

func (k Kind) Valid() bool {
	switch k {
	case KindLog, KindInfo, KindWarning, KindError:
		return true
	}
	return false
}

func (k Kind) IsStatus() bool {
	return k == KindInfo || k == KindWarning || k == KindError
}

// Message is one classified inbound record. It is never mutated after
// classification.
type Message struct {
	Namespace string               `json:"namespace"`
	PodName   string               `json:"podName"`
	Kind      Kind                 `json:"type"`
	Text      string               `json:"text"`
	Timestamp mo.Option[time.Time] `json:"timestamp"`
}

// frame is the wire representation of an inbound record.
type frame struct {
	Namespace string          `json:"namespace"`
	PodName   string          `json:"podName"`
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

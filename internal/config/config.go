package config

import (
	"time"

	"github.com/JNickson/kubelog-viewer/internal/capability"
	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
)

const Prefix = "KUBELOG"

type DirectoryMode string

const (
	DirectoryHTTP DirectoryMode = "http"
	DirectoryKube DirectoryMode = "kube"
)

type Settings struct {
	Addr     string `envconfig:"ADDR" default:":8001"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	EntityFile string `envconfig:"ENTITY_FILE" default:"catalog-info.yaml"`
	// Entity overrides the name read from the entity file.
	Entity string `envconfig:"ENTITY"`

	DirectoryMode    DirectoryMode `envconfig:"DIRECTORY_MODE" default:"http"`
	DirectoryURL     string        `envconfig:"DIRECTORY_URL" default:"http://localhost:7007/api/kwirth"`
	DirectoryScopes  string        `envconfig:"DIRECTORY_SCOPES" default:"view,restart"`
	DiscoveryTimeout time.Duration `envconfig:"DISCOVERY_TIMEOUT" default:"15s"`

	Kubeconfig       string `envconfig:"KUBECONFIG_PATH"`
	KubeClusterName  string `envconfig:"KUBE_CLUSTER_NAME" default:"local"`
	KubeClusterTitle string `envconfig:"KUBE_CLUSTER_TITLE" default:"Local cluster"`
	KubeStreamURL    string `envconfig:"KUBE_STREAM_URL" default:"ws://localhost:3883"`
	KubeVersion      string `envconfig:"KUBE_VERSION"`
	KubeViewKey      string `envconfig:"KUBE_VIEW_KEY"`
	KubeRestartKey   string `envconfig:"KUBE_RESTART_KEY"`

	BufferCapacity    int    `envconfig:"BUFFER_CAPACITY" default:"1000"`
	MinRestartVersion string `envconfig:"MIN_RESTART_VERSION" default:"0.9.0"`
	DialReadLimit     int64  `envconfig:"DIAL_READ_LIMIT" default:"4194304"`
}

// Load reads Settings from the environment.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process(Prefix, &s); err != nil {
		return Settings{}, errors.Wrap(err, "load config")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	switch s.DirectoryMode {
	case DirectoryHTTP:
		if s.DirectoryURL == "" {
			return errors.New("directory url is required in http mode")
		}
	case DirectoryKube:
		if s.KubeStreamURL == "" {
			return errors.New("stream url is required in kube mode")
		}
	default:
		return errors.Newf("invalid directory mode: %s", s.DirectoryMode)
	}

	if s.BufferCapacity < 1 {
		return errors.Newf("buffer capacity must be >= 1, got %d", s.BufferCapacity)
	}

	if _, err := s.Scopes(); err != nil {
		return err
	}

	return nil
}

func (s Settings) Scopes() ([]capability.Scope, error) {
	return capability.ParseScopes(s.DirectoryScopes)
}

package restart

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JNickson/kubelog-viewer/internal/capability"
	"github.com/cockroachdb/errors"
)

var ErrRestart = errors.New("restart failed")

// Client asks a cluster backend to restart a pod.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: httpClient, logger: logger}
}

// Endpoint maps the cluster's websocket URL to the restart endpoint.
func Endpoint(clusterURL, namespace, pod string) (string, error) {
	u, err := url.Parse(clusterURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid cluster url %q", clusterURL)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", errors.Newf("invalid cluster url %q: unsupported scheme", clusterURL)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/managecluster/restartpod/" +
		url.PathEscape(namespace) + "/" + url.PathEscape(pod)
	u.RawPath = ""
	u.RawQuery = ""

	return u.String(), nil
}

func (c *Client) Restart(
	ctx context.Context,
	clusterURL, namespace, pod string,
	token capability.Token,
) error {
	target, err := Endpoint(clusterURL, namespace, pod)
	if err != nil {
		return errors.Mark(err, ErrRestart)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return errors.Mark(err, ErrRestart)
	}
	req.Header.Set("Authorization", "Bearer "+token.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "restart %s/%s", namespace, pod), ErrRestart)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Mark(errors.Newf("restart %s/%s: unexpected status %d", namespace, pod, resp.StatusCode), ErrRestart)
	}

	c.logger.Info("pod restart requested", "namespace", namespace, "pod", pod)
	return nil
}

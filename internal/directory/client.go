package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JNickson/kubelog-viewer/internal/capability"
)

const maxErrorBody = 512

// Client talks to a remote directory over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) ResolveResources(ctx context.Context, entity Entity) ([]ClusterResources, error) {
	return c.post(ctx, c.baseURL+"/start", entity)
}

func (c *Client) ResolveResourcesWithCapabilities(
	ctx context.Context,
	entity Entity,
	scopes []capability.Scope,
) ([]ClusterResources, error) {
	q := url.Values{}
	q.Set("scopes", capability.JoinScopes(scopes))

	clusters, err := c.post(ctx, c.baseURL+"/access?"+q.Encode(), entity)
	if err != nil {
		return nil, err
	}

	// the remote side should already have filtered; enforce it locally too
	for i := range clusters {
		for j := range clusters[i].Pods {
			clusters[i].Pods[j].Capabilities = clusters[i].Pods[j].Capabilities.Filter(scopes)
		}
	}
	return clusters, nil
}

func (c *Client) post(ctx context.Context, target string, entity Entity) ([]ClusterResources, error) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return nil, &DiscoveryError{Cause: "encode entity: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, &DiscoveryError{Cause: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &DiscoveryError{Cause: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := strings.TrimSpace(string(body))
		if cause == "" {
			cause = http.StatusText(resp.StatusCode)
		}
		return nil, &DiscoveryError{StatusCode: resp.StatusCode, Cause: cause}
	}

	var out []ClusterResources
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &DiscoveryError{StatusCode: resp.StatusCode, Cause: "decode resources: " + err.Error()}
	}

	return out, nil
}

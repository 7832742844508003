package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type HTTPClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client
}

// HTTPClient resolves managers against the profile service REST API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	retries int
}

func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("directory base url required")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  client,
		timeout: timeout,
		retries: retries,
	}, nil
}

// GetManager calls GET {base}/profiles/{login}/manager. A 404 maps to
// ErrNoManager; transient failures are retried with linear backoff.
func (c *HTTPClient) GetManager(ctx context.Context, login string) (int64, error) {
	endpoint := c.baseURL + "/profiles/" + url.PathEscape(login) + "/manager"

	attempts := c.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			cancel()
			return 0, fmt.Errorf("directory build request: %w", err)
		}
		resp, err := c.client.Do(httpReq)
		cancel()
		if err != nil {
			lastErr = err
		} else {
			managerID, decodeErr := decodeManager(resp)
			resp.Body.Close()
			if decodeErr == nil || decodeErr == ErrNoManager {
				return managerID, decodeErr
			}
			lastErr = decodeErr
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}
	return 0, fmt.Errorf("directory manager lookup failed: %w", lastErr)
}

func decodeManager(resp *http.Response) (int64, error) {
	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrNoManager
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("directory unavailable: %s", resp.Status)
	}
	var body struct {
		ManagerID int64 `json:"managerId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("directory decode response: %w", err)
	}
	if body.ManagerID == 0 {
		return 0, ErrNoManager
	}
	return body.ManagerID, nil
}

package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPDirectory resolves public profiles against the account service's REST
// API: GET {base}/api/users/{id}/public -> {"username": "..."}.
type HTTPDirectory struct {
	base   *url.URL
	client *http.Client
}

func NewHTTPDirectory(baseURL string, timeout time.Duration) (*HTTPDirectory, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("directory base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("directory base url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPDirectory{
		base:   u,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (d *HTTPDirectory) LookupPublicProfile(ctx context.Context, userID string) (Profile, error) {
	u := d.base.JoinPath("api", "users", url.PathEscape(userID), "public")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Profile{}, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Profile{}, ErrUnknownUser
	default:
		return Profile{}, fmt.Errorf("directory lookup for %q: unexpected status %d", userID, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(http.MaxBytesReader(nil, resp.Body, 1<<16)).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("directory lookup for %q: decode: %w", userID, err)
	}
	return p, nil
}

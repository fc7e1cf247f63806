// Package debrid resolves sources through a premium cache service
// (Real-Debrid compatible API) into direct HTTP URLs.
package debrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"peerplay/internal/domain"
)

const defaultBaseURL = "https://api.real-debrid.com/rest/1.0"

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client

	pollInterval time.Duration
	pollTimeout  time.Duration
}

type Config struct {
	APIKey  string
	BaseURL string
	Client  *http.Client

	// PollInterval/PollTimeout bound the wait for the service to have the
	// torrent's files ready.
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type User struct {
	Username string `json:"username"`
	Premium  int    `json:"premium"` // seconds of premium left
	Type     string `json:"type"`
}

type addedTorrent struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

type torrentInfo struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	Progress float64  `json:"progress"`
	Links    []string `json:"links"`
}

type unrestrictedLink struct {
	Download string `json:"download"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 60 * time.Second
	}
	return &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         httpClient,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Validate checks the API key against the account endpoint.
func (c *Client) Validate(ctx context.Context) (User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/user", nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Resolve runs the full cached-resolution flow: check the instant cache,
// add the magnet, select all files, wait for the service to report the
// files ready, and unrestrict the first link into a direct URL.
func (c *Client) Resolve(ctx context.Context, src domain.SourceDescriptor) (string, error) {
	if src.InfoHash != "" {
		cached, err := c.CheckInstant(ctx, src.InfoHash)
		if err != nil {
			return "", err
		}
		if !cached {
			return "", fmt.Errorf("%w: %s not in the instant cache", domain.ErrSourceUnavailable, src.InfoHash)
		}
	}

	added, err := c.addMagnet(ctx, src.Magnet)
	if err != nil {
		return "", err
	}
	if err := c.selectFiles(ctx, added.ID, "all"); err != nil {
		return "", err
	}
	info, err := c.waitReady(ctx, added.ID)
	if err != nil {
		return "", err
	}
	return c.unrestrict(ctx, info.Links[0])
}

// CheckInstant reports whether the service already holds the torrent's
// files. A source that is not instantly cached would take a full download
// service-side, so callers reject it up front instead of polling out the
// clock.
func (c *Client) CheckInstant(ctx context.Context, infoHash string) (bool, error) {
	hash := strings.ToLower(strings.TrimSpace(infoHash))
	if hash == "" {
		return false, nil
	}

	var avail map[string]json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/torrents/instantAvailability/"+hash, nil, &avail); err != nil {
		if errors.Is(err, domain.ErrDebridAuth) {
			return false, err
		}
		// The endpoint errors on malformed or unknown hashes; either way
		// the hash is not cached.
		return false, nil
	}

	// An available hash maps to an object with an "rd" variant list; an
	// unavailable one maps to an empty array.
	entry, ok := avail[hash]
	if !ok {
		return false, nil
	}
	return strings.Contains(string(entry), `"rd"`), nil
}

func (c *Client) addMagnet(ctx context.Context, magnet string) (addedTorrent, error) {
	form := url.Values{"magnet": {magnet}}
	var added addedTorrent
	if err := c.do(ctx, http.MethodPost, "/torrents/addMagnet", form, &added); err != nil {
		return addedTorrent{}, err
	}
	if added.ID == "" {
		return addedTorrent{}, fmt.Errorf("%w: service accepted magnet but returned no id", domain.ErrSourceUnavailable)
	}
	return added, nil
}

func (c *Client) selectFiles(ctx context.Context, torrentID, files string) error {
	form := url.Values{"files": {files}}
	return c.do(ctx, http.MethodPost, "/torrents/selectFiles/"+torrentID, form, nil)
}

func (c *Client) torrentInfo(ctx context.Context, torrentID string) (torrentInfo, error) {
	var info torrentInfo
	if err := c.do(ctx, http.MethodGet, "/torrents/info/"+torrentID, nil, &info); err != nil {
		return torrentInfo{}, err
	}
	return info, nil
}

// waitReady polls until the torrent is downloaded service-side. A cached
// torrent is ready on the first poll; an uncached one would take as long as
// a real download, so the timeout keeps this bounded.
func (c *Client) waitReady(ctx context.Context, torrentID string) (torrentInfo, error) {
	deadline := time.NewTimer(c.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		info, err := c.torrentInfo(ctx, torrentID)
		if err != nil {
			return torrentInfo{}, err
		}
		switch info.Status {
		case "downloaded":
			if len(info.Links) == 0 {
				return torrentInfo{}, fmt.Errorf("%w: torrent downloaded but no links", domain.ErrSourceUnavailable)
			}
			return info, nil
		case "error", "magnet_error", "virus", "dead":
			return torrentInfo{}, fmt.Errorf("%w: service reports status %q", domain.ErrSourceUnavailable, info.Status)
		}

		select {
		case <-ctx.Done():
			return torrentInfo{}, ctx.Err()
		case <-deadline.C:
			return torrentInfo{}, fmt.Errorf("%w: not cached within %s (status %q)",
				domain.ErrSourceUnavailable, c.pollTimeout, info.Status)
		case <-ticker.C:
		}
	}
}

func (c *Client) unrestrict(ctx context.Context, link string) (string, error) {
	form := url.Values{"link": {link}}
	var unrestricted unrestrictedLink
	if err := c.do(ctx, http.MethodPost, "/unrestrict/link", form, &unrestricted); err != nil {
		return "", err
	}
	if unrestricted.Download == "" {
		return "", fmt.Errorf("%w: unrestrict returned no download URL", domain.ErrSourceUnavailable)
	}
	return unrestricted.Download, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	if !c.Enabled() {
		return fmt.Errorf("%w: no API key configured", domain.ErrDebridAuth)
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: HTTP %d", domain.ErrDebridAuth, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("debrid HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

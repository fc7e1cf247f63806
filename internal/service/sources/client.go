// Package sources lists torrent-like sources for a piece of media from a
// stremio-addon compatible endpoint.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"peerplay/internal/domain"
)

const defaultBaseURL = "https://torrentio.strem.fun"

type Client struct {
	baseURL string
	http    *http.Client

	// quality keeps only sources with this label when set.
	quality string
	// sortBy orders results: seeders (default), size or quality.
	sortBy string
}

type Config struct {
	BaseURL string
	Client  *http.Client
	Quality string
	SortBy  string
}

type stream struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	InfoHash  string `json:"infoHash"`
	FileIdx   *int   `json:"fileIdx"`
	Behaviors struct {
		BingeGroup string `json:"bingeGroup"`
	} `json:"behaviorHints"`
}

type streamResponse struct {
	Streams []stream `json:"streams"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		quality: strings.ToLower(strings.TrimSpace(cfg.Quality)),
		sortBy:  strings.ToLower(strings.TrimSpace(cfg.SortBy)),
	}
}

// MovieSources lists sources for a movie by IMDB id.
func (c *Client) MovieSources(ctx context.Context, imdbID string) ([]domain.SourceDescriptor, error) {
	return c.fetch(ctx, fmt.Sprintf("/stream/movie/%s.json", url.PathEscape(imdbID)))
}

// EpisodeSources lists sources for one episode of a show.
func (c *Client) EpisodeSources(ctx context.Context, imdbID string, season, episode int) ([]domain.SourceDescriptor, error) {
	return c.fetch(ctx, fmt.Sprintf("/stream/series/%s:%d:%d.json", url.PathEscape(imdbID), season, episode))
}

func (c *Client) fetch(ctx context.Context, path string) ([]domain.SourceDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: sources HTTP %d: %s",
			domain.ErrSourceUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var response streamResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("decode sources response: %w", err)
	}

	descriptors := make([]domain.SourceDescriptor, 0, len(response.Streams))
	for _, s := range response.Streams {
		if s.InfoHash == "" {
			continue
		}
		d := parseStream(s)
		if c.quality != "" && strings.ToLower(d.Quality) != c.quality {
			continue
		}
		descriptors = append(descriptors, d)
	}
	c.sortDescriptors(descriptors)
	return descriptors, nil
}

func (c *Client) sortDescriptors(list []domain.SourceDescriptor) {
	switch c.sortBy {
	case "size":
		sort.SliceStable(list, func(i, j int) bool { return list[i].Size > list[j].Size })
	case "quality":
		sort.SliceStable(list, func(i, j int) bool {
			qi, qj := qualityRank(list[i].Quality), qualityRank(list[j].Quality)
			if qi != qj {
				return qi > qj
			}
			return list[i].Seeders > list[j].Seeders
		})
	default: // seeders
		sort.SliceStable(list, func(i, j int) bool { return list[i].Seeders > list[j].Seeders })
	}
}

func qualityRank(q string) int {
	switch strings.ToLower(q) {
	case "2160p", "4k":
		return 4
	case "1080p":
		return 3
	case "720p":
		return 2
	case "480p":
		return 1
	default:
		return 0
	}
}

// Package metadata looks up movies and shows on a TMDB-compatible API.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	posterBaseURL   = "https://image.tmdb.org/t/p/w300"
	defaultLanguage = "en-US"
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

type Config struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

type SearchResult struct {
	ID           int     `json:"id"`
	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	Overview     string  `json:"overview,omitempty"`
	PosterPath   string  `json:"poster_path,omitempty"`
	VoteAverage  float64 `json:"vote_average,omitempty"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	MediaType    string  `json:"media_type,omitempty"`
}

func (r SearchResult) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

func (r SearchResult) Year() int {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) >= 4 {
		year := 0
		for _, c := range date[:4] {
			if c >= '0' && c <= '9' {
				year = year*10 + int(c-'0')
			}
		}
		return year
	}
	return 0
}

func (r SearchResult) PosterURL() string {
	if r.PosterPath == "" {
		return ""
	}
	return posterBaseURL + r.PosterPath
}

type Episode struct {
	EpisodeNumber int    `json:"episode_number"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
}

type Season struct {
	SeasonNumber int       `json:"season_number"`
	Episodes     []Episode `json:"episodes"`
}

type showDetails struct {
	NumberOfSeasons int `json:"number_of_seasons"`
}

type externalIDs struct {
	IMDBID string `json:"imdb_id"`
}

type multiSearchResponse struct {
	Results []SearchResult `json:"results"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// SearchMulti returns movies and shows matching query, in the API's
// relevance order.
func (c *Client) SearchMulti(ctx context.Context, query string) ([]SearchResult, error) {
	params := url.Values{
		"query":    {strings.TrimSpace(query)},
		"language": {defaultLanguage},
	}
	var response multiSearchResponse
	if err := c.get(ctx, "/search/multi", params, &response); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		if r.MediaType == "movie" || r.MediaType == "tv" {
			results = append(results, r)
		}
	}
	return results, nil
}

// IMDBID resolves the IMDB id for a movie or show; mediaType is "movie" or
// "tv". Source providers key on the IMDB id, not the TMDB one.
func (c *Client) IMDBID(ctx context.Context, mediaType string, id int) (string, error) {
	var ids externalIDs
	if err := c.get(ctx, fmt.Sprintf("/%s/%d/external_ids", mediaType, id), nil, &ids); err != nil {
		return "", err
	}
	if ids.IMDBID == "" {
		return "", fmt.Errorf("no imdb id for %s %d", mediaType, id)
	}
	return ids.IMDBID, nil
}

// SeasonCount returns how many seasons a show has.
func (c *Client) SeasonCount(ctx context.Context, showID int) (int, error) {
	var details showDetails
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", showID), nil, &details); err != nil {
		return 0, err
	}
	return details.NumberOfSeasons, nil
}

// SeasonEpisodes lists a season's episodes.
func (c *Client) SeasonEpisodes(ctx context.Context, showID, season int) ([]Episode, error) {
	var s Season
	if err := c.get(ctx, fmt.Sprintf("/tv/%d/season/%d", showID, season), nil, &s); err != nil {
		return nil, err
	}
	return s.Episodes, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if !c.Enabled() {
		return fmt.Errorf("metadata API key not configured")
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("metadata HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

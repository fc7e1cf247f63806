package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"peerplay/internal/domain"
)

const (
	defaultAnilistURL = "https://graphql.anilist.co"
	defaultMappingURL = "https://arm.haglund.dev/api/v2"
)

// AnilistClient searches anime on the AniList GraphQL API. AniList has no
// notion of IMDB ids, so the client also resolves them through an arm-server
// compatible mapping service; source providers only understand IMDB ids.
type AnilistClient struct {
	baseURL    string
	mappingURL string
	http       *http.Client
}

type AnilistConfig struct {
	BaseURL    string
	MappingURL string
	Client     *http.Client
}

type AnimeResult struct {
	ID           int
	MALID        int
	Title        string // romaji
	TitleEnglish string
	Episodes     int
	Score        float64
	Year         int
	Format       string // TV, MOVIE, OVA, ...
	CoverURL     string
}

func (r AnimeResult) DisplayTitle() string {
	if r.TitleEnglish != "" {
		return r.TitleEnglish
	}
	return r.Title
}

// IsMovie reports whether the title is a film rather than an episodic show.
func (r AnimeResult) IsMovie() bool {
	return r.Format == "MOVIE"
}

const animeSearchQuery = `query ($search: String) {
  Page(perPage: 10) {
    media(search: $search, type: ANIME, sort: POPULARITY_DESC) {
      id
      idMal
      title { romaji english }
      episodes
      averageScore
      seasonYear
      format
      coverImage { medium }
    }
  }
}`

type anilistMedia struct {
	ID    int `json:"id"`
	IDMal int `json:"idMal"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
	} `json:"title"`
	Episodes     int    `json:"episodes"`
	AverageScore int    `json:"averageScore"`
	SeasonYear   int    `json:"seasonYear"`
	Format       string `json:"format"`
	CoverImage   struct {
		Medium string `json:"medium"`
	} `json:"coverImage"`
}

type anilistResponse struct {
	Data *struct {
		Page struct {
			Media []anilistMedia `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type mappingResponse struct {
	IMDB string `json:"imdb"`
}

func NewAnilistClient(cfg AnilistConfig) *AnilistClient {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultAnilistURL
	}
	mappingURL := strings.TrimSpace(cfg.MappingURL)
	if mappingURL == "" {
		mappingURL = defaultMappingURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &AnilistClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		mappingURL: strings.TrimRight(mappingURL, "/"),
		http:       httpClient,
	}
}

// SearchAnime returns anime matching query, most popular first. No API key
// is needed; the GraphQL endpoint is public.
func (c *AnilistClient) SearchAnime(ctx context.Context, query string) ([]AnimeResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"query":     animeSearchQuery,
		"variables": map[string]string{"search": strings.TrimSpace(query)},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("anilist HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var response anilistResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("anilist: %s", response.Errors[0].Message)
	}
	if response.Data == nil {
		return nil, fmt.Errorf("anilist: empty response")
	}

	results := make([]AnimeResult, 0, len(response.Data.Page.Media))
	for _, m := range response.Data.Page.Media {
		results = append(results, AnimeResult{
			ID:           m.ID,
			MALID:        m.IDMal,
			Title:        m.Title.Romaji,
			TitleEnglish: m.Title.English,
			Episodes:     m.Episodes,
			Score:        float64(m.AverageScore) / 10,
			Year:         m.SeasonYear,
			Format:       m.Format,
			CoverURL:     m.CoverImage.Medium,
		})
	}
	return results, nil
}

// IMDBID resolves the IMDB id for an anime through the mapping service. The
// MAL id maps more reliably and is preferred when AniList knows it.
func (c *AnilistClient) IMDBID(ctx context.Context, anime AnimeResult) (string, error) {
	source, id := "anilist", anime.ID
	if anime.MALID != 0 {
		source, id = "myanimelist", anime.MALID
	}

	reqURL := fmt.Sprintf("%s/ids?source=%s&id=%d", c.mappingURL, source, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: no id mapping for %s %d", domain.ErrNotFound, source, id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("mapping HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var mapping mappingResponse
	if err := json.Unmarshal(body, &mapping); err != nil {
		return "", err
	}
	if mapping.IMDB == "" {
		return "", fmt.Errorf("%w: %s %d has no imdb id", domain.ErrNotFound, source, id)
	}
	return mapping.IMDB, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"peerplay/internal/app"
	"peerplay/internal/domain"
	"peerplay/internal/history"
	"peerplay/internal/service/metadata"
	"peerplay/internal/service/sources"
)

// pickSource walks the interactive flow: search metadata, pick a title (and
// episode for shows), list sources, pick one. It also returns the history
// entry to record once playback actually starts.
func pickSource(ctx context.Context, cfg app.Config, query string) (domain.SourceDescriptor, history.Entry, error) {
	meta := metadata.NewClient(metadata.Config{
		APIKey:  cfg.Metadata.APIKey,
		BaseURL: cfg.Metadata.BaseURL,
	})
	if !meta.Enabled() {
		return domain.SourceDescriptor{}, history.Entry{},
			fmt.Errorf("metadata API key not configured; run `peerplay init` or play a magnet link directly")
	}

	results, err := meta.SearchMulti(ctx, query)
	if err != nil {
		return domain.SourceDescriptor{}, history.Entry{}, err
	}
	if len(results) == 0 {
		return domain.SourceDescriptor{}, history.Entry{}, fmt.Errorf("nothing found for %q", query)
	}

	fmt.Println()
	for i, r := range results {
		kind := "movie"
		if r.MediaType == "tv" {
			kind = "show"
		}
		year := ""
		if y := r.Year(); y > 0 {
			year = fmt.Sprintf(" (%d)", y)
		}
		fmt.Printf("%2d. %s%s [%s]\n", i+1, r.DisplayTitle(), year, kind)
	}
	choice, err := promptIndex("Pick a title", len(results))
	if err != nil || choice == 0 {
		return domain.SourceDescriptor{}, history.Entry{}, abortOr(err)
	}
	picked := results[choice-1]

	entry := history.Entry{
		TMDBID:    picked.ID,
		MediaType: picked.MediaType,
		Title:     picked.DisplayTitle(),
		Poster:    picked.PosterURL(),
	}

	season, episode := 0, 0
	if picked.MediaType == "tv" {
		if season, episode, err = pickEpisode(ctx, meta, picked.ID); err != nil {
			return domain.SourceDescriptor{}, history.Entry{}, err
		}
		entry.Season, entry.Episode = season, episode
		if eps, err := meta.SeasonEpisodes(ctx, picked.ID, season); err == nil {
			for _, ep := range eps {
				if ep.EpisodeNumber == episode {
					entry.EpisodeTitle = ep.Name
				}
			}
		}
	}

	imdbID, err := meta.IMDBID(ctx, picked.MediaType, picked.ID)
	if err != nil {
		return domain.SourceDescriptor{}, history.Entry{}, err
	}

	src, err := pickFromProvider(ctx, cfg, imdbID, picked.MediaType, season, episode)
	if err != nil {
		return domain.SourceDescriptor{}, history.Entry{}, err
	}
	return src, entry, nil
}

// pickAnimeSource is the anime variant of pickSource: AniList instead of
// the movie database, absolute episode numbers (listed as season 1 on the
// source provider), and IMDB ids resolved through the id-mapping service.
func pickAnimeSource(ctx context.Context, cfg app.Config, query string) (domain.SourceDescriptor, history.Entry, error) {
	anilist := metadata.NewAnilistClient(metadata.AnilistConfig{})

	results, err := anilist.SearchAnime(ctx, query)
	if err != nil {
		return domain.SourceDescriptor{}, history.Entry{}, err
	}
	if len(results) == 0 {
		return domain.SourceDescriptor{}, history.Entry{}, fmt.Errorf("nothing found for %q", query)
	}

	fmt.Println()
	for i, r := range results {
		year := ""
		if r.Year > 0 {
			year = fmt.Sprintf(" (%d)", r.Year)
		}
		detail := "movie"
		if !r.IsMovie() {
			detail = fmt.Sprintf("%d eps", r.Episodes)
		}
		fmt.Printf("%2d. %s%s [%s, %.1f]\n", i+1, r.DisplayTitle(), year, detail, r.Score)
	}
	choice, err := promptIndex("Pick a title", len(results))
	if err != nil || choice == 0 {
		return domain.SourceDescriptor{}, history.Entry{}, abortOr(err)
	}
	picked := results[choice-1]

	entry := history.Entry{
		TMDBID:    picked.ID,
		MediaType: "anime",
		Title:     picked.DisplayTitle(),
		Poster:    picked.CoverURL,
	}

	mediaType, episode := "movie", 0
	if !picked.IsMovie() {
		mediaType = "tv"
		if episode, err = promptInt("Episode", 1); err != nil {
			return domain.SourceDescriptor{}, history.Entry{}, err
		}
		entry.Season, entry.Episode = 1, episode
	}

	imdbID, err := anilist.IMDBID(ctx, picked)
	if err != nil {
		return domain.SourceDescriptor{}, history.Entry{}, err
	}

	src, err := pickFromProvider(ctx, cfg, imdbID, mediaType, 1, episode)
	if err != nil {
		return domain.SourceDescriptor{}, history.Entry{}, err
	}
	return src, entry, nil
}

func pickEpisode(ctx context.Context, meta *metadata.Client, showID int) (int, int, error) {
	seasons, err := meta.SeasonCount(ctx, showID)
	if err != nil {
		seasons = 0
	}
	label := "Season"
	if seasons > 0 {
		label = fmt.Sprintf("Season (1-%d)", seasons)
	}
	season, err := promptInt(label, 1)
	if err != nil {
		return 0, 0, err
	}
	episode, err := promptInt("Episode", 1)
	if err != nil {
		return 0, 0, err
	}
	return season, episode, nil
}

func pickFromProvider(ctx context.Context, cfg app.Config, imdbID, mediaType string, season, episode int) (domain.SourceDescriptor, error) {
	provider := sources.NewClient(sources.Config{
		BaseURL: cfg.Sources.BaseURL,
		Quality: cfg.Sources.Quality,
		SortBy:  cfg.Sources.Sort,
	})

	var (
		list []domain.SourceDescriptor
		err  error
	)
	if mediaType == "tv" {
		list, err = provider.EpisodeSources(ctx, imdbID, season, episode)
	} else {
		list, err = provider.MovieSources(ctx, imdbID)
	}
	if err != nil {
		return domain.SourceDescriptor{}, err
	}
	if len(list) == 0 {
		return domain.SourceDescriptor{}, fmt.Errorf("%w: no sources for %s", domain.ErrSourceUnavailable, imdbID)
	}

	const maxShown = 15
	if len(list) > maxShown {
		list = list[:maxShown]
	}
	fmt.Println()
	for i, s := range list {
		quality := s.Quality
		if quality == "" {
			quality = "?"
		}
		fmt.Printf("%2d. [%s] %s  %s, %d seeders (%s)\n",
			i+1, quality, s.Title, humanize.Bytes(uint64(s.Size)), s.Seeders, s.Provider)
	}
	choice, err := promptIndex("Pick a source", len(list))
	if err != nil || choice == 0 {
		return domain.SourceDescriptor{}, abortOr(err)
	}
	return list[choice-1], nil
}

func abortOr(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("cancelled")
}

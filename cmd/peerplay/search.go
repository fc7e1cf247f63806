package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"peerplay/internal/service/metadata"
)

func newSearchCmd() *cobra.Command {
	var anime bool
	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Search movies and shows without starting playback",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			if anime {
				return searchAnime(cmd, query)
			}
			meta := metadata.NewClient(metadata.Config{
				APIKey:  cfg.Metadata.APIKey,
				BaseURL: cfg.Metadata.BaseURL,
			})
			if !meta.Enabled() {
				return fmt.Errorf("metadata API key not configured; run `peerplay init`")
			}

			results, err := meta.SearchMulti(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Printf("Nothing found for %q\n", query)
				return nil
			}
			for _, r := range results {
				kind := "movie"
				if r.MediaType == "tv" {
					kind = "show"
				}
				year := ""
				if y := r.Year(); y > 0 {
					year = fmt.Sprintf(" (%d)", y)
				}
				fmt.Printf("%-6s %s%s\n", kind, r.DisplayTitle(), year)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&anime, "anime", false, "search AniList instead of the movie database")
	return cmd
}

func searchAnime(cmd *cobra.Command, query string) error {
	anilist := metadata.NewAnilistClient(metadata.AnilistConfig{})
	results, err := anilist.SearchAnime(cmd.Context(), query)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("Nothing found for %q\n", query)
		return nil
	}
	for _, r := range results {
		year := ""
		if r.Year > 0 {
			year = fmt.Sprintf(" (%d)", r.Year)
		}
		detail := "movie"
		if !r.IsMovie() {
			detail = fmt.Sprintf("%d eps", r.Episodes)
		}
		fmt.Printf("%-6s %s%s [%s]\n", "anime", r.DisplayTitle(), year, detail)
	}
	return nil
}

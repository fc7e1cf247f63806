package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"peerplay/internal/app"
	"peerplay/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently watched titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No watch history yet.")
				return nil
			}
			for _, e := range entries {
				title := e.Title
				switch {
				case e.MediaType == "tv":
					title = fmt.Sprintf("%s S%02dE%02d", e.Title, e.Season, e.Episode)
					if e.EpisodeTitle != "" {
						title += " " + e.EpisodeTitle
					}
				case e.MediaType == "anime" && e.Episode > 0:
					// Anime episodes are absolute, no season prefix.
					title = fmt.Sprintf("%s E%02d", e.Title, e.Episode)
				}
				fmt.Printf("%-50s %s\n", title, humanize.Time(e.WatchedAt))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	cmd.AddCommand(newHistoryClearCmd())
	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all watch history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("History cleared.")
			return nil
		},
	}
}

func openHistory() (*history.Store, error) {
	path, err := app.HistoryPath()
	if err != nil {
		return nil, err
	}
	return history.Open(path)
}

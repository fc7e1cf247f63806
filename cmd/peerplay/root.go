package main

import (
	"github.com/spf13/cobra"

	"peerplay/internal/app"
)

var configFlag string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "peerplay",
		Short: "Stream movies and shows from the terminal",
		Long: `peerplay searches for movies and shows, picks a torrent-like source, and
plays it in your media player while the download is still running. With a
premium debrid key configured it resolves cached sources to direct URLs and
skips the swarm entirely.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default ~/.config/peerplay/config.toml)")

	root.AddCommand(
		newPlayCmd(),
		newSearchCmd(),
		newInitCmd(),
		newConfigCmd(),
		newHistoryCmd(),
	)
	return root
}

func loadConfig() (app.Config, error) {
	if configFlag != "" {
		return app.LoadFrom(configFlag)
	}
	return app.Load()
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"peerplay/internal/app"
	"peerplay/internal/service/debrid"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive setup: API keys and player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				cfg = app.DefaultConfig()
			}

			fmt.Println("peerplay setup. Enter to keep the current value.")

			if cfg.Metadata.APIKey, err = promptString("TMDB API key", cfg.Metadata.APIKey); err != nil {
				return err
			}
			if cfg.Debrid.APIKey, err = promptString("Real-Debrid API key (empty to disable)", cfg.Debrid.APIKey); err != nil {
				return err
			}
			if cfg.Player.Command, err = promptString("Player command", cfg.Player.Command); err != nil {
				return err
			}

			if cfg.Debrid.APIKey != "" {
				client := debrid.NewClient(debrid.Config{APIKey: cfg.Debrid.APIKey})
				user, err := client.Validate(cmd.Context())
				if err != nil {
					fmt.Printf("Warning: debrid key validation failed: %v\n", err)
				} else {
					fmt.Printf("Debrid account: %s (%s)\n", user.Username, user.Type)
				}
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			path := configFlag
			if path == "" {
				if path, err = app.ConfigPath(); err != nil {
					return err
				}
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", path)
			return nil
		},
	}
}

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"peerplay/internal/app"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSetCmd(), newConfigResetCmd())
	return cmd
}

func configPath() (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	return app.ConfigPath()
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Debrid.APIKey != "" {
				cfg.Debrid.APIKey = "***"
			}
			if cfg.Metadata.APIKey != "" {
				cfg.Metadata.APIKey = "***"
			}
			return toml.NewEncoder(os.Stdout).Encode(cfg)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one configuration value",
		Long: `Supported keys: debrid.api_key, metadata.api_key, player.command,
sources.quality, sources.sort, streaming.port, streaming.cleanup,
streaming.degraded_start, log.level, log.format.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := setConfigValue(&cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			path, err := configPath()
			if err != nil {
				return err
			}
			return cfg.Save(path)
		},
	}
}

func newConfigResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if err := app.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Printf("Reset %s\n", path)
			return nil
		},
	}
}

func setConfigValue(cfg *app.Config, key, value string) error {
	switch key {
	case "debrid.api_key":
		cfg.Debrid.APIKey = value
	case "metadata.api_key":
		cfg.Metadata.APIKey = value
	case "player.command":
		cfg.Player.Command = value
	case "sources.quality":
		cfg.Sources.Quality = value
	case "sources.sort":
		cfg.Sources.Sort = value
	case "streaming.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port %q", value)
		}
		cfg.Streaming.Port = port
	case "streaming.cleanup":
		cfg.Streaming.Cleanup = value
	case "streaming.degraded_start":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		cfg.Streaming.DegradedStart = enabled
	case "log.level":
		cfg.Log.Level = value
	case "log.format":
		cfg.Log.Format = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return nil
}

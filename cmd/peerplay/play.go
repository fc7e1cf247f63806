package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	apihttp "peerplay/internal/api/http"
	"peerplay/internal/app"
	"peerplay/internal/cleanup"
	"peerplay/internal/domain"
	"peerplay/internal/history"
	"peerplay/internal/metrics"
	"peerplay/internal/playback"
	"peerplay/internal/readiness"
	"peerplay/internal/service/debrid"
	"peerplay/internal/service/swarm/anacrolix"
	"peerplay/internal/telemetry"
)

func newPlayCmd() *cobra.Command {
	var forceP2P, anime bool
	cmd := &cobra.Command{
		Use:   "play <magnet|title>",
		Short: "Stream a movie or show in your player",
		Long: `Play a magnet link directly, or search by title and pick interactively.
With a debrid key configured, cached sources are resolved to direct URLs;
use --p2p to stream from the swarm regardless.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, strings.Join(args, " "), forceP2P, anime)
		},
	}
	cmd.Flags().BoolVar(&forceP2P, "p2p", false, "stream from the swarm even when a debrid key is configured")
	cmd.Flags().BoolVar(&anime, "anime", false, "search AniList instead of the movie database")
	return cmd
}

func runPlay(cmd *cobra.Command, arg string, forceP2P, anime bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Log)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(cmd.Context(), "peerplay")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		src   domain.SourceDescriptor
		entry history.Entry
	)
	switch {
	case domain.IsMagnet(arg):
		src = domain.SourceDescriptor{Magnet: arg, Title: "magnet stream", FileIdx: -1}
	case anime:
		if src, entry, err = pickAnimeSource(ctx, cfg, arg); err != nil {
			return err
		}
	default:
		if src, entry, err = pickSource(ctx, cfg, arg); err != nil {
			return err
		}
	}

	req := playback.StartRequest{Source: src, Mode: domain.ModeP2P}
	resolver := debrid.NewClient(debrid.Config{APIKey: cfg.Debrid.APIKey})
	if resolver.Enabled() && !forceP2P {
		fmt.Println("Resolving through debrid cache...")
		url, err := resolver.Resolve(ctx, src)
		if err != nil {
			logger.Warn("cached resolution failed, falling back to swarm",
				slog.String("error", err.Error()))
		} else {
			req.Mode = domain.ModeCached
			req.ResolvedURL = url
		}
	}

	launcher := &playback.ExecLauncher{
		Command: cfg.Player.Command,
		Args:    cfg.Player.Args,
		Logger:  logger,
	}

	deps := playback.Deps{
		Launcher: launcher,
		Logger:   logger,
	}

	if req.Mode == domain.ModeP2P {
		engine, err := anacrolix.New(anacrolix.Config{
			DataDir:     cfg.DataDir(),
			MaxConns:    cfg.Streaming.MaxConns,
			OpenTimeout: time.Duration(cfg.Streaming.SourceOpenTimeoutSeconds) * time.Second,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		defer engine.Close()

		gate := &readiness.Gate{
			MinBufferBytes:   cfg.Streaming.MinBufferMB << 20,
			MinBufferSeconds: cfg.Streaming.MinBufferSeconds,
			Timeout:          time.Duration(cfg.Streaming.BufferTimeoutSeconds) * time.Second,
			Logger:           logger,
		}
		server := apihttp.New(gate, apihttp.WithLogger(logger))
		if err := server.Start(cfg.Streaming.Port, cfg.Streaming.PortAttempts); err != nil {
			return err
		}
		defer server.Close()

		mode, _ := cleanup.ParseMode(cfg.Streaming.Cleanup)
		deps.Engine = engine
		deps.Server = server
		deps.Gate = gate
		deps.Cleanup = &cleanup.Policy{Mode: mode, Logger: logger}
		deps.DegradedStart = cfg.Streaming.DegradedStart
		deps.OnProgress = func(p domain.Progress) {
			server.BroadcastProgress(p)
			printProgress(p)
		}

		fmt.Printf("Buffering %s...\n", src.Title)
	}

	controller := playback.New(deps)
	handle, err := controller.Start(ctx, req)
	if err != nil {
		return err
	}

	recordHistory(ctx, logger, entry)

	go func() {
		<-ctx.Done()
		handle.Cancel()
	}()

	// Wait on a fresh context: ctx cancellation already triggers Cancel, and
	// teardown must finish before we return.
	waitErr := handle.Wait(context.Background())
	fmt.Println()
	if waitErr != nil {
		return waitErr
	}
	fmt.Println("Playback finished.")
	return nil
}

func printProgress(p domain.Progress) {
	fmt.Printf("\r%5.1f%%  %s / %s  %s/s  %d peers   ",
		p.Percent(),
		humanize.Bytes(uint64(p.Downloaded)),
		humanize.Bytes(uint64(p.TotalBytes)),
		humanize.Bytes(uint64(p.DownloadSpeed)),
		p.Peers,
	)
}

// recordHistory is best-effort; playback never fails on bookkeeping.
func recordHistory(ctx context.Context, logger *slog.Logger, entry history.Entry) {
	if entry.TMDBID == 0 {
		return
	}
	path, err := app.HistoryPath()
	if err != nil {
		logger.Warn("history path unavailable", slog.String("error", err.Error()))
		return
	}
	store, err := history.Open(path)
	if err != nil {
		logger.Warn("history open failed", slog.String("error", err.Error()))
		return
	}
	defer store.Close()
	if err := store.Record(ctx, entry); err != nil {
		logger.Warn("history record failed", slog.String("error", err.Error()))
	}
}

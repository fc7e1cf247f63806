package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"peerplay/internal/domain"
)

// PlayerProcess is a running external player.
type PlayerProcess interface {
	// Wait blocks until the player exits.
	Wait() error
	// Kill terminates the player. Safe to call after exit.
	Kill() error
}

// PlayerLauncher starts the external player against a media URL.
type PlayerLauncher interface {
	Launch(ctx context.Context, mediaURL string) (PlayerProcess, error)
}

// ExecLauncher runs the configured player binary as a child process with
// inherited stdio, so terminal players (mpv, vlc) keep their own UI.
type ExecLauncher struct {
	Command string
	Args    []string
	Logger  *slog.Logger
}

func (l *ExecLauncher) Launch(ctx context.Context, mediaURL string) (PlayerProcess, error) {
	bin, err := exec.LookPath(l.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not installed or not on PATH", domain.ErrPlayerNotFound, l.Command)
	}

	args := append(append([]string(nil), l.Args...), mediaURL)
	cmd := exec.Command(bin, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player %q: %w", l.Command, err)
	}
	if l.Logger != nil {
		l.Logger.Info("player started",
			slog.String("command", l.Command),
			slog.Int("pid", cmd.Process.Pid),
		)
	}
	_ = ctx // the lifecycle controller owns termination, not the start context
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

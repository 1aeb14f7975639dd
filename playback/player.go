// Package playback plays saved audio files through a local command-line
// player.
package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/AltairaLabs/mediakit/logger"
)

// ErrNoPlayer is returned when no supported player binary is installed.
var ErrNoPlayer = errors.New("no audio player found")

// Player plays an audio file and blocks until playback ends.
type Player interface {
	Play(ctx context.Context, path string) error
}

// Command is a player binary and the arguments placed before the file path.
type Command struct {
	Name string
	Args []string
}

// DefaultCommands are tried in order.
var DefaultCommands = []Command{
	{Name: "afplay"},
	{Name: "ffplay", Args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
	{Name: "mpv", Args: []string{"--no-video"}},
	{Name: "aplay"},
}

// CommandPlayer runs the first available command from its list.
type CommandPlayer struct {
	commands []Command
	lookPath func(string) (string, error)
	run      func(ctx context.Context, path string, args []string) error
}

// Option configures a CommandPlayer.
type Option func(*CommandPlayer)

// WithCommand pins the player to a single command line, e.g. "mpv --no-video".
// An empty string keeps the defaults.
func WithCommand(cmdline string) Option {
	return func(p *CommandPlayer) {
		fields := strings.Fields(cmdline)
		if len(fields) == 0 {
			return
		}
		p.commands = []Command{{Name: fields[0], Args: fields[1:]}}
	}
}

// NewCommandPlayer creates a player that shells out to an installed binary.
func NewCommandPlayer(opts ...Option) *CommandPlayer {
	p := &CommandPlayer{
		commands: DefaultCommands,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve returns the first command whose binary is on PATH, with its
// absolute path filled in.
func (p *CommandPlayer) Resolve() (Command, error) {
	for _, c := range p.commands {
		bin, err := p.lookPath(c.Name)
		if err == nil {
			return Command{Name: bin, Args: c.Args}, nil
		}
	}
	names := make([]string, 0, len(p.commands))
	for _, c := range p.commands {
		names = append(names, c.Name)
	}
	return Command{}, fmt.Errorf("%w: tried %s", ErrNoPlayer, strings.Join(names, ", "))
}

// Play plays path with the resolved command.
func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	c, err := p.Resolve()
	if err != nil {
		return err
	}
	args := append(append([]string(nil), c.Args...), path)
	logger.DebugContext(ctx, "Playing audio", "player", c.Name, "file", path)
	return p.run(ctx, c.Name, args)
}

func runCommand(ctx context.Context, bin string, args []string) error {
	//nolint:gosec // G204: the binary comes from a fixed list or explicit user configuration
	cmd := exec.CommandContext(ctx, bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s failed: %w, stderr: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Nop discards playback requests.
type Nop struct{}

// Play implements Player.
func (Nop) Play(context.Context, string) error { return nil }

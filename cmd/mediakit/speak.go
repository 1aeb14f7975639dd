package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/mediakit/gallery"
	"github.com/AltairaLabs/mediakit/logger"
	"github.com/AltairaLabs/mediakit/metrics"
	"github.com/AltairaLabs/mediakit/naming"
	"github.com/AltairaLabs/mediakit/playback"
	"github.com/AltairaLabs/mediakit/tts"
)

const (
	defaultSpeakOutDir = "outputs"
	speakTimeout       = 120 * time.Second
	describeTimeout    = 30 * time.Second
)

// speakFormat is the saved and played audio format.
var speakFormat = tts.FormatMP3

type speakOptions struct {
	noPlay bool
}

func (a *app) speakCmd() *cobra.Command {
	opts := &speakOptions{}
	cmd := &cobra.Command{
		Use:   "speak TEXT...",
		Short: "Synthesize speech with ElevenLabs, save it and play it",
		Long: `Synthesize the given text, save it as <voice>-<description>.mp3 and play it.

The description is a short summary of the text written by Claude. Without
ANTHROPIC_API_KEY it falls back to "speech". Ctrl-C stops synthesis or
playback and exits with status 130.`,
		Example: `  mediakit speak "Back in my day we walked to school uphill both ways"
  mediakit speak --voice grandpa --no-play Hello there`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSpeak(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.String("voice", "", "Voice name (default: random). Options: "+strings.Join(tts.DefaultVoices.Names(), ", "))
	f.String("out-dir", defaultSpeakOutDir, "Directory for saved audio")
	f.String("player", "", "Audio player command, e.g. \"mpv --no-video\" (default: first available)")
	f.BoolVar(&opts.noPlay, "no-play", false, "Save the audio without playing it")

	a.bind(f.Lookup("voice"), "speak.voice")
	a.bind(f.Lookup("out-dir"), "speak.out_dir")
	a.bind(f.Lookup("player"), "speak.player")
	return cmd
}

func (a *app) runSpeak(cmd *cobra.Command, opts *speakOptions, args []string) error {
	ctx := a.begin(cmd)
	cfg := a.cfg

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return usageErrorf("text is required")
	}

	voiceName, voiceID, err := pickVoice(cfg.ElevenLabs.Voices, cfg.Speak.Voice, a.rng)
	if err != nil {
		return usageErrorf("%w", err)
	}

	if cfg.ElevenLabs.APIKey == "" {
		return usageErrorf("missing ELEVENLABS_API_KEY")
	}

	svc := tts.NewElevenLabs(cfg.ElevenLabs.APIKey,
		tts.WithElevenLabsBaseURL(cfg.ElevenLabs.BaseURL),
		tts.WithElevenLabsModel(cfg.ElevenLabs.Model),
		tts.WithElevenLabsFormat(speakFormat),
		tts.WithElevenLabsClient(a.httpClient(speakTimeout)),
	)
	model := valueOr(cfg.ElevenLabs.Model, tts.ElevenLabsModelMultilingual)

	audio, err := synthesize(ctx, svc, text, voiceID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.reportSynthesisError(err, text, voiceName, model)
		return reported(err)
	}

	outDir := valueOr(cfg.Speak.OutDir, defaultSpeakOutDir)
	if _, err := gallery.EnsureDir(outDir); err != nil {
		return err
	}

	desc := a.describe(ctx, text)
	path, err := naming.UniquePath(outDir, voiceName+"-"+desc, speakFormat.Extension)
	if err != nil {
		return err
	}
	if err := gallery.WriteFileAtomic(path, audio); err != nil {
		return err
	}
	metrics.RecordFileWritten(metrics.FileAudio)
	fmt.Fprintf(a.stdout, "Saved: %s\n", filepath.Base(path))

	if opts.noPlay {
		return nil
	}
	player := a.player
	if player == nil {
		player = playback.NewCommandPlayer(playback.WithCommand(cfg.Speak.Player))
	}
	if err := player.Play(ctx, path); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.WarnContext(ctx, "Playback failed; audio was saved", "file", path, "error", err)
	}
	return nil
}

// pickVoice chooses from the built-in voices, plus any configured ones.
func pickVoice(configured map[string]string, name string, rng *rand.Rand) (voiceName, voiceID string, err error) {
	if len(configured) == 0 {
		return tts.PickVoice(name, rng)
	}
	return tts.DefaultVoices.Merge(configured).Pick(name, rng)
}

func synthesize(ctx context.Context, svc tts.Service, text, voiceID string) ([]byte, error) {
	rc, err := svc.Synthesize(ctx, text, tts.SynthesisConfig{Voice: voiceID})
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	audio, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}

// describe names the file after the text. Failures fall back to
// naming.Fallback so the synthesized audio is still saved.
func (a *app) describe(ctx context.Context, text string) string {
	cfg := a.cfg.Anthropic
	if cfg.APIKey == "" {
		logger.DebugContext(ctx, "ANTHROPIC_API_KEY not set, using fallback name")
		return naming.Fallback
	}
	d := naming.NewAnthropicDescriber(cfg.APIKey,
		naming.WithBaseURL(cfg.BaseURL),
		naming.WithModel(cfg.Model),
		naming.WithHTTPClient(a.httpClient(describeTimeout)),
	)
	desc, err := d.Describe(ctx, text)
	if err != nil {
		logger.WarnContext(ctx, "Could not describe text, using fallback name", "error", err)
		return naming.Fallback
	}
	return desc
}

func (a *app) reportSynthesisError(err error, text, voice, model string) {
	var synthErr *tts.SynthesisError
	if errors.As(err, &synthErr) && synthErr.HTTPStatus != 0 {
		fmt.Fprintf(a.stderr, "ElevenLabs API Error: %s\n", synthErr.Message)
		fmt.Fprintf(a.stderr, "Status: %s\n", synthErr.Code)
	} else {
		fmt.Fprintf(a.stderr, "Unexpected error: %v\n", err)
	}
	fmt.Fprintf(a.stderr, "Request details: text='%s', voice='%s', model='%s'\n", text, voice, model)
}

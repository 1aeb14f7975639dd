package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/mediakit/gallery"
	"github.com/AltairaLabs/mediakit/images"
	"github.com/AltairaLabs/mediakit/logger"
	"github.com/AltairaLabs/mediakit/prompts"
)

const genTool = "openai-image-gen"

type genOptions struct {
	count       int
	compression int
	moderation  string
	timeout     time.Duration
	sleep       time.Duration
	outDir      string
	apiKey      string
	prompts     []string
	dryRun      bool
}

func (a *app) genCmd() *cobra.Command {
	opts := &genOptions{}
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate images with " + images.GenerateModel,
		Long: `Generate images from text prompts, one request per image, and write them
to an output directory together with prompts.json and an index.html gallery.

Without --prompt, random prompts are generated. --dry-run prints the prompts
and the output directory without an API key and without creating anything.
Ctrl-C cancels the current request and exits with status 130.`,
		Example: `  mediakit gen --count 4
  mediakit gen --prompt "a glass whale floating above a desert" --format webp --compression 80`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGen(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + validValuesHelp(false))

	f := cmd.Flags()
	f.IntVar(&opts.count, "count", 8, "Number of images to generate")
	f.String("size", "1024x1024", "Image size: "+strings.Join(images.ValidSizes, ", "))
	f.String("quality", "high", "Image quality: "+strings.Join(images.ValidQualities, ", "))
	f.String("background", "", "Background: "+strings.Join(images.ValidBackgrounds, ", ")+" (default: API default)")
	f.String("format", "png", "Output format: "+strings.Join(images.ValidOutputFormats, ", "))
	f.IntVar(&opts.compression, "compression", 0, "Compression 0-100 for jpeg/webp (default: API default)")
	f.StringVar(&opts.moderation, "moderation", "", "Moderation: "+strings.Join(images.ValidModerations, ", ")+" (default: API default)")
	f.DurationVar(&opts.timeout, "timeout", 180*time.Second, "Per-request timeout")
	f.DurationVar(&opts.sleep, "sleep", 200*time.Millisecond, "Minimum spacing between requests")
	f.StringVar(&opts.outDir, "out-dir", "", "Output directory (default ~/Projects/tmp/"+genTool+"-<stamp> or ./tmp/...)")
	f.StringVar(&opts.apiKey, "api-key", "", "OpenAI API key (or set OPENAI_API_KEY)")
	f.StringArrayVar(&opts.prompts, "prompt", nil, "Prompt to use (repeatable; replaces random prompts)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Print prompts and exit without calling the API")

	a.bind(f.Lookup("size"), "gen.size")
	a.bind(f.Lookup("quality"), "gen.quality")
	a.bind(f.Lookup("background"), "gen.background")
	a.bind(f.Lookup("format"), "gen.format")
	return cmd
}

func (a *app) runGen(cmd *cobra.Command, opts *genOptions) error {
	ctx := a.begin(cmd)
	defaults := a.cfg.Gen

	imgOpts := images.Options{
		Size:         defaults.Size,
		Quality:      defaults.Quality,
		Background:   defaults.Background,
		OutputFormat: defaults.Format,
	}
	if cmd.Flags().Changed("compression") {
		imgOpts.Compression = &opts.compression
	}
	if err := imgOpts.Validate(); err != nil {
		return asUsage(err)
	}
	if opts.moderation != "" && !slices.Contains(images.ValidModerations, opts.moderation) {
		return usageErrorf("--moderation must be one of %s", strings.Join(images.ValidModerations, ", "))
	}
	if len(opts.prompts) == 0 && opts.count < 1 {
		return usageErrorf("--count must be at least 1")
	}

	apiKey := firstNonEmpty(opts.apiKey, a.cfg.OpenAI.APIKey)
	if apiKey == "" && !opts.dryRun {
		return usageErrorf("missing OPENAI_API_KEY (or --api-key)")
	}

	outDir, err := a.resolveOutDir(opts.outDir, defaults.OutDir, genTool)
	if err != nil {
		return err
	}

	list := opts.prompts
	if len(list) == 0 {
		list = prompts.Random(opts.count, a.rng)
	}

	if opts.dryRun {
		for i, p := range list {
			fmt.Fprintf(a.stdout, "%02d %s\n", i+1, p)
		}
		fmt.Fprintf(a.stdout, "out_dir=%s\n", outDir)
		return nil
	}

	if _, err := gallery.EnsureDir(outDir); err != nil {
		return err
	}

	client := images.NewClient(apiKey,
		images.WithBaseURL(a.cfg.OpenAI.BaseURL),
		images.WithHTTPClient(a.httpClient(opts.timeout)),
	)

	var limiter *rate.Limiter
	if opts.sleep > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.sleep), 1)
	}

	ext := images.FileExtension(imgOpts.OutputFormat)
	items := make([]gallery.Item, 0, len(list))
	for i, p := range list {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		logger.DebugContext(ctx, "Generating image", "index", i+1, "total", len(list))
		res, err := client.Generate(ctx, images.GenerateRequest{
			Prompt:     p,
			N:          1,
			Moderation: opts.moderation,
			Options:    imgOpts,
		})
		if err != nil {
			return asUsage(err)
		}

		name := fmt.Sprintf("%02d-%s.%s", i+1, gallery.Slug(p, gallery.DefaultSlugLen, "image"), ext)
		if err := gallery.WriteImage(outDir, name, res.Images[0].Data); err != nil {
			return err
		}
		items = append(items, gallery.Item{
			File:    name,
			Prompt:  p,
			Size:    imgOpts.Size,
			Quality: imgOpts.Quality,
			Format:  imgOpts.OutputFormat,
		})
		fmt.Fprintf(a.stdout, "wrote %s\n", name)
	}

	if err := gallery.WritePrompts(outDir, items); err != nil {
		return err
	}
	if err := gallery.WriteIndex(outDir, genTool, items, nil); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "out_dir=%s\n", outDir)
	return nil
}

// resolveOutDir picks the flag value, then the configured value, then the
// stamped default directory.
func (a *app) resolveOutDir(flagValue, configured, tool string) (string, error) {
	if dir := firstNonEmpty(flagValue, configured); dir != "" {
		return dir, nil
	}
	return gallery.DefaultOutDir(tool, a.now())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func validValuesHelp(edit bool) string {
	var b strings.Builder
	b.WriteString("\nValid parameter values:\n")
	fmt.Fprintf(&b, "  --size           %s\n", strings.Join(images.ValidSizes, ", "))
	fmt.Fprintf(&b, "  --quality        %s\n", strings.Join(images.ValidQualities, ", "))
	fmt.Fprintf(&b, "  --background     %s\n", strings.Join(images.ValidBackgrounds, ", "))
	fmt.Fprintf(&b, "  --format         %s\n", strings.Join(images.ValidOutputFormats, ", "))
	if edit {
		fmt.Fprintf(&b, "  --input-fidelity %s\n", strings.Join(images.ValidInputFidelities, ", "))
	} else {
		fmt.Fprintf(&b, "  --moderation     %s\n", strings.Join(images.ValidModerations, ", "))
	}
	b.WriteString("  --compression    0-100 (only for jpeg/webp)\n")
	return b.String()
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/mediakit/gallery"
	"github.com/AltairaLabs/mediakit/images"
	"github.com/AltairaLabs/mediakit/logger"
	"github.com/AltairaLabs/mediakit/media"
	"github.com/AltairaLabs/mediakit/multipart"
)

const (
	editTool = "openai-image-edit"

	// editBoundaryAttempts bounds how many boundaries are drawn when one
	// occurs inside uploaded image data.
	editBoundaryAttempts = 3
)

type editOptions struct {
	images        []string
	prompt        string
	mask          string
	count         int
	compression   int
	inputFidelity string
	maxSide       int
	timeout       time.Duration
	outDir        string
	apiKey        string
	dryRun        bool
}

func (a *app) editCmd() *cobra.Command {
	opts := &editOptions{}
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit or composite images with " + images.EditModel,
		Long: `Edit one image, or combine up to 16 reference images, from a text prompt.

Inputs are copied into the output directory as input-<name>. Results are
written as edited-NN-<slug>.<ext> with metadata.json and an index.html gallery.
--dry-run prints the request without an API key and without creating anything.
Input file names containing a double quote or line break are rejected.`,
		Example: `  mediakit edit --image photo.png --prompt "Add a wizard hat"
  mediakit edit --image item1.png --image item2.png --prompt "Arrange these items in a gift basket"
  mediakit edit --image room.png --mask mask.png --prompt "Replace the sofa with a bookshelf"
  mediakit edit --image portrait.jpg --prompt "Add sunglasses" --input-fidelity high`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runEdit(cmd, opts)
		},
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + validValuesHelp(true))

	f := cmd.Flags()
	f.StringArrayVarP(&opts.images, "image", "i", nil, "Input image (repeatable, up to 16)")
	f.StringVarP(&opts.prompt, "prompt", "p", "", "Edit instructions")
	f.StringVar(&opts.mask, "mask", "", "PNG mask; transparent pixels mark the area to edit")
	f.IntVar(&opts.count, "count", 1, "Number of results")
	f.String("size", "auto", "Output size: "+strings.Join(images.ValidSizes, ", "))
	f.String("quality", "high", "Quality: "+strings.Join(images.ValidQualities, ", "))
	f.String("background", "", "Background: "+strings.Join(images.ValidBackgrounds, ", ")+" (default: API default)")
	f.String("format", "png", "Output format: "+strings.Join(images.ValidOutputFormats, ", "))
	f.IntVar(&opts.compression, "compression", 0, "Compression 0-100 for jpeg/webp (default: API default)")
	f.StringVar(&opts.inputFidelity, "input-fidelity", "", "Input fidelity: "+strings.Join(images.ValidInputFidelities, ", "))
	f.IntVar(&opts.maxSide, "max-side", 0, "Downscale inputs so neither side exceeds this many pixels (0 keeps originals)")
	f.DurationVar(&opts.timeout, "timeout", 300*time.Second, "Request timeout")
	f.StringVar(&opts.outDir, "out-dir", "", "Output directory (default ~/Projects/tmp/"+editTool+"-<stamp> or ./tmp/...)")
	f.StringVar(&opts.apiKey, "api-key", "", "OpenAI API key (or set OPENAI_API_KEY)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Print request details and exit without calling the API")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("prompt")

	a.bind(f.Lookup("size"), "edit.size")
	a.bind(f.Lookup("quality"), "edit.quality")
	a.bind(f.Lookup("background"), "edit.background")
	a.bind(f.Lookup("format"), "edit.format")
	return cmd
}

//nolint:funlen // linear command flow
func (a *app) runEdit(cmd *cobra.Command, opts *editOptions) error {
	ctx := a.begin(cmd)
	defaults := a.cfg.Edit

	req := images.EditRequest{
		Model:         images.EditModel,
		Prompt:        opts.prompt,
		N:             opts.count,
		InputFidelity: opts.inputFidelity,
		Options: images.Options{
			Size:         defaults.Size,
			Quality:      defaults.Quality,
			Background:   defaults.Background,
			OutputFormat: defaults.Format,
		},
	}
	if cmd.Flags().Changed("compression") {
		req.Compression = &opts.compression
	}

	if len(opts.images) > images.MaxInputImages {
		return usageErrorf("maximum %d input images allowed", images.MaxInputImages)
	}
	for _, p := range opts.images {
		if !fileExists(p) {
			return usageErrorf("image not found: %s", p)
		}
	}
	if opts.mask != "" && !fileExists(opts.mask) {
		return usageErrorf("mask not found: %s", opts.mask)
	}
	if opts.count < 1 {
		return usageErrorf("--count must be at least 1")
	}
	if err := validateEditShape(&req, len(opts.images)); err != nil {
		return err
	}

	apiKey := firstNonEmpty(opts.apiKey, a.cfg.OpenAI.APIKey)
	if apiKey == "" && !opts.dryRun {
		return usageErrorf("missing OPENAI_API_KEY (or --api-key)")
	}

	outDir, err := a.resolveOutDir(opts.outDir, defaults.OutDir, editTool)
	if err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintf(a.stdout, "Model: %s\n", req.Model)
		fmt.Fprintf(a.stdout, "Images: %s\n", strings.Join(opts.images, ", "))
		fmt.Fprintf(a.stdout, "Prompt: %s\n", req.Prompt)
		fmt.Fprintf(a.stdout, "Mask: %s\n", valueOr(opts.mask, "none"))
		fmt.Fprintf(a.stdout, "Count: %d\n", req.N)
		fmt.Fprintf(a.stdout, "Size: %s\n", req.Size)
		fmt.Fprintf(a.stdout, "Quality: %s\n", req.Quality)
		fmt.Fprintf(a.stdout, "Format: %s\n", req.OutputFormat)
		fmt.Fprintf(a.stdout, "Input fidelity: %s\n", valueOr(req.InputFidelity, "default"))
		fmt.Fprintf(a.stdout, "out_dir=%s\n", outDir)
		return nil
	}

	if req.Images, err = loadInputs(ctx, opts.images, opts.maxSide); err != nil {
		return err
	}
	if opts.mask != "" {
		data, err := os.ReadFile(opts.mask)
		if err != nil {
			return fmt.Errorf("read mask: %w", err)
		}
		req.Mask = &images.InputImage{Filename: filepath.Base(opts.mask), Data: data, ContentType: media.MIMETypePNG}
	}

	if _, err := gallery.EnsureDir(outDir); err != nil {
		return err
	}
	inputNames := make([]string, 0, len(opts.images))
	for _, p := range opts.images {
		name, err := gallery.CopyInput(outDir, p)
		if err != nil {
			return err
		}
		inputNames = append(inputNames, name)
	}

	client := images.NewClient(apiKey,
		images.WithBaseURL(a.cfg.OpenAI.BaseURL),
		images.WithHTTPClient(a.httpClient(opts.timeout)),
		images.WithEncoder(multipart.NewEncoder(
			multipart.WithStrictHeaders(),
			multipart.WithCollisionCheck(editBoundaryAttempts),
		)),
	)
	fmt.Fprintf(a.stdout, "Sending request to %s...\n", client.URL("edits"))

	res, err := client.Edit(ctx, req)
	if err != nil {
		return asUsage(err)
	}
	for _, idx := range res.Skipped {
		fmt.Fprintf(a.stderr, "warning: no image data in result %d\n", idx)
	}

	ext := images.FileExtension(req.OutputFormat)
	slug := gallery.Slug(req.Prompt, gallery.DefaultSlugLen, "edited")
	items := make([]gallery.Item, 0, len(res.Images))
	for _, img := range res.Images {
		name := fmt.Sprintf("edited-%02d-%s.%s", img.Index, slug, ext)
		if err := gallery.WriteImage(outDir, name, img.Data); err != nil {
			return err
		}
		items = append(items, gallery.Item{
			File:    name,
			Prompt:  req.Prompt,
			Size:    req.Size,
			Quality: req.Quality,
			Format:  req.OutputFormat,
		})
		fmt.Fprintf(a.stdout, "wrote %s\n", name)
	}

	meta := &gallery.EditMetadata{
		Model:   req.Model,
		Prompt:  req.Prompt,
		Results: items,
	}
	for _, p := range opts.images {
		meta.InputImages = append(meta.InputImages, filepath.Base(p))
	}
	if opts.mask != "" {
		m := filepath.Base(opts.mask)
		meta.Mask = &m
	}
	if err := gallery.WriteEditMetadata(outDir, meta); err != nil {
		return err
	}
	if err := gallery.WriteIndex(outDir, editTool, items, inputNames); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "out_dir=%s\n", outDir)
	return nil
}

// validateEditShape runs request validation with placeholder images so
// option errors surface before any file is read or written.
func validateEditShape(req *images.EditRequest, nImages int) error {
	shape := *req
	shape.Images = make([]images.InputImage, nImages)
	return asUsage(shape.Validate())
}

// loadInputs reads each image, optionally downscaling it, and detects its
// content type.
func loadInputs(ctx context.Context, paths []string, maxSide int) ([]images.InputImage, error) {
	out := make([]images.InputImage, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		in := images.InputImage{
			Filename:    filepath.Base(p),
			Data:        data,
			ContentType: media.DetectContentType(p, data),
		}
		if info, err := media.Probe(data); err != nil {
			logger.WarnContext(ctx, "Could not read image header", "file", in.Filename, "error", err)
		} else {
			logger.DebugContext(ctx, "Loaded input", "file", in.Filename,
				"format", info.Format, "width", info.Width, "height", info.Height)
		}
		if maxSide > 0 {
			fit, err := media.FitWithin(data, maxSide)
			if err != nil {
				return nil, fmt.Errorf("resize %s: %w", p, err)
			}
			if fit.Resized {
				logger.InfoContext(ctx, "Downscaled input", "file", in.Filename, "width", fit.Width, "height", fit.Height)
				in.Data = fit.Data
				if fit.MIMEType != in.ContentType {
					in.Filename = strings.TrimSuffix(in.Filename, filepath.Ext(in.Filename)) + ".jpg"
				}
				in.ContentType = fit.MIMEType
			}
		}
		out = append(out, in)
	}
	return out, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

package cmd

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sjoblomj/irongrp-go/pkg/grp"
	"github.com/sjoblomj/irongrp-go/pkg/pngbridge"
)

// NewDecodeCmd creates the grp-to-png command: GRP archive -> indexed PNG
// frames (spec.md §6.4, "grp-to-png").
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grp-to-png",
		Short: "convert a GRP archive into PNG frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input-path")
			outputPath, _ := cmd.Flags().GetString("output-path")
			palPath, _ := cmd.Flags().GetString("pal-path")
			tiled, _ := cmd.Flags().GetBool("tiled")
			maxWidth, _ := cmd.Flags().GetInt("max-width")
			frameNumber, _ := cmd.Flags().GetInt("frame-number")
			useTransparency, _ := cmd.Flags().GetBool("use-transparency")

			if !tiled && maxWidth > 0 {
				return fmt.Errorf("the --max-width flag is only applicable together with --tiled")
			}
			if tiled && frameNumber >= 0 {
				return fmt.Errorf("the --frame-number flag is not applicable together with --tiled")
			}
			if inputPath == "" || outputPath == "" || palPath == "" {
				return fmt.Errorf("--input-path, --output-path, and --pal-path are all required")
			}

			return runDecode(ctx, decodeOptions{
				inputPath: inputPath, outputPath: outputPath, palPath: palPath,
				tiled: tiled, maxWidth: maxWidth, frameNumber: frameNumber, useTransparency: useTransparency,
			})
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("input-path", "", "path to the GRP file to decode")
	pf.String("output-path", "", "directory to write PNG frames into")
	pf.String("pal-path", "", "path to the palette file")
	pf.Bool("tiled", false, "render all frames into a single tiled image")
	pf.Int("max-width", 0, "maximum width of the tiled image (only with --tiled)")
	pf.Int("frame-number", -1, "render only this frame (not applicable with --tiled)")
	pf.Bool("use-transparency", false, "write RGBA PNGs with palette index 0 as transparent")
	return cmd
}

type decodeOptions struct {
	inputPath, outputPath, palPath string
	tiled                          bool
	maxWidth, frameNumber          int
	useTransparency                bool
}

func runDecode(ctx context.Context, opts decodeOptions) error {
	log := slog.Default()

	palFile, err := os.Open(opts.palPath)
	if err != nil {
		return grp.WrapError(grp.KindIO, err, "opening %s", opts.palPath)
	}
	defer palFile.Close()
	pal, err := grp.LoadPalette(palFile)
	if err != nil {
		return err
	}

	archive, err := grp.ReadFile(opts.inputPath, log)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.outputPath, 0o755); err != nil {
		return grp.WrapError(grp.KindIO, err, "creating %s", opts.outputPath)
	}

	frames := make([]pngbridge.EgressFrame, len(archive.Frames))
	maxFrameWidth, maxFrameHeight := 0, 0
	for i, f := range archive.Frames {
		frames[i] = pngbridge.EgressFrame{
			XOffset: int(f.XOffset), YOffset: int(f.YOffset),
			Width: f.EffectiveWidth(), Height: int(f.Height),
			Pixels: f.Data.Pixels, ImageDataOffset: f.ImageDataOffset,
		}
		maxFrameWidth = max(maxFrameWidth, f.EffectiveWidth())
		maxFrameHeight = max(maxFrameHeight, int(f.Height))
	}

	prefix := variantPrefix(archive.Variant)

	if opts.tiled {
		canvas := pngbridge.CompositeTiled(frames, maxFrameWidth, maxFrameHeight, opts.maxWidth, pal, opts.useTransparency)
		return saveCanvas(canvas, filepath.Join(opts.outputPath, "all_frames.png"))
	}

	canvasW := int(archive.Header.MaxWidth)
	canvasH := int(archive.Header.MaxHeight)
	rendered, dedup := pngbridge.CompositeNonTiled(frames, canvasW, canvasH, pal, opts.useTransparency, opts.frameNumber)
	dedup.Log(log)

	for i, img := range rendered {
		if img == nil {
			continue
		}
		name := fmt.Sprintf("%sframe_%03d.png", prefix, i)
		if err := saveCanvas(img, filepath.Join(opts.outputPath, name)); err != nil {
			return err
		}
	}
	return nil
}

func variantPrefix(v grp.Variant) string {
	switch v {
	case grp.Uncompressed, grp.UncompressedExtended:
		return "uncompressed_"
	case grp.War1:
		return "war1_"
	default:
		return ""
	}
}

func saveCanvas(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return grp.WrapError(grp.KindIO, err, "creating %s", path)
	}
	defer f.Close()
	if err := pngbridge.Save(f, img); err != nil {
		return grp.WrapError(grp.KindIO, err, "encoding %s", path)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sjoblomj/irongrp-go/pkg/grp"
	"github.com/sjoblomj/irongrp-go/pkg/pngbridge"
)

// NewEncodeCmd creates the png-to-grp command: a directory of PNG frames
// -> a GRP archive (spec.md §6.4, "png-to-grp").
func NewEncodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "png-to-grp",
		Short: "assemble PNG frames into a GRP archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input-path")
			outputPath, _ := cmd.Flags().GetString("output-path")
			palPath, _ := cmd.Flags().GetString("pal-path")
			compressionType, _ := cmd.Flags().GetString("compression-type")

			if inputPath == "" || outputPath == "" || palPath == "" {
				return fmt.Errorf("--input-path, --output-path, and --pal-path are all required")
			}

			return runEncode(ctx, inputPath, outputPath, palPath, compressionType)
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("input-path", "", "directory containing the PNG frames, in lexical order")
	pf.String("output-path", "", "path to write the GRP archive to")
	pf.String("pal-path", "", "path to the palette file")
	pf.String("compression-type", "auto", "normal, optimised, uncompressed, war1, or auto")
	return cmd
}

func runEncode(ctx context.Context, inputPath, outputPath, palPath, compressionType string) error {
	log := slog.Default()

	palFile, err := os.Open(palPath)
	if err != nil {
		return grp.WrapError(grp.KindIO, err, "opening %s", palPath)
	}
	defer palFile.Close()
	pal, err := grp.LoadPalette(palFile)
	if err != nil {
		return err
	}

	pngFiles, err := listPNGFiles(inputPath)
	if err != nil {
		return err
	}
	if len(pngFiles) == 0 {
		return grp.NewError(grp.KindInvalidInput, "no PNG files found in %s", inputPath)
	}

	variant, mode := resolveCompressionType(compressionType, pngFiles)
	log.Info("selected compression type", "variant", variant, "mode", mode)

	builder := grp.NewFrameBuilder(variant, mode, len(pngFiles))
	cache := pngbridge.NewColorCache()

	var maxWidth, maxHeight int
	frames := make([]*grp.GrpFrame, 0, len(pngFiles))
	for _, path := range pngFiles {
		f, err := os.Open(path)
		if err != nil {
			return grp.WrapError(grp.KindIO, err, "opening %s", path)
		}
		result, err := pngbridge.Ingest(f, pal, cache, variant, log)
		f.Close()
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		maxWidth = max(maxWidth, result.OriginalWidth)
		maxHeight = max(maxHeight, result.OriginalHeight)

		frame, err := builder.Add(grp.BuildInput{
			XOffset: uint8(result.XOffset), YOffset: uint8(result.YOffset),
			EffectiveWidth: result.StoredWidth, Height: uint8(result.Height),
			Pixels: result.Pixels,
		})
		if err != nil {
			return fmt.Errorf("building frame for %s: %w", path, err)
		}
		frames = append(frames, frame)
	}

	archive := &grp.Archive{
		Header:  grp.GrpHeader{FrameCount: uint16(len(frames)), MaxWidth: uint16(maxWidth), MaxHeight: uint16(maxHeight)},
		Variant: variant,
		Frames:  frames,
	}

	if _, err := grp.WriteFile(outputPath, archive); err != nil {
		return err
	}
	log.Info("wrote grp archive", "path", outputPath, "frames", len(frames))
	return nil
}

func listPNGFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, grp.WrapError(grp.KindIO, err, "reading %s", dir)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// resolveCompressionType implements spec.md §6.4's auto-selection: when
// compressionType is "auto", inspect the PNG filenames for the
// uncompressed_/war1_ substrings before defaulting to Normal.
func resolveCompressionType(compressionType string, pngFiles []string) (grp.Variant, grp.EncodeMode) {
	switch compressionType {
	case "optimised":
		return grp.Normal, grp.ModeOptimised
	case "uncompressed":
		return grp.Uncompressed, grp.ModeNormal
	case "war1":
		return grp.War1, grp.ModeNormal
	case "normal":
		return grp.Normal, grp.ModeNormal
	default: // "auto"
		for _, f := range pngFiles {
			if strings.Contains(filepath.Base(f), "uncompressed_") {
				return grp.Uncompressed, grp.ModeNormal
			}
		}
		for _, f := range pngFiles {
			if strings.Contains(filepath.Base(f), "war1_") {
				return grp.War1, grp.ModeNormal
			}
		}
		return grp.Normal, grp.ModeNormal
	}
}

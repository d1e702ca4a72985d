package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sjoblomj/irongrp-go/pkg/analyze"
	"github.com/sjoblomj/irongrp-go/pkg/grp"
)

// NewAnalyzeCmd creates the analyse-grp command: a file-layout diagnostic
// over an existing GRP archive (spec.md §4.8, §6.4 "analyse-grp").
func NewAnalyzeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyse-grp",
		Short: "report header extent, duplicate frames, and byte-layout gaps in a GRP file",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input-path")
			frameNumber, _ := cmd.Flags().GetInt("frame-number")
			rowNumber, _ := cmd.Flags().GetInt("analyse-row-number")

			if frameNumber < 0 && rowNumber >= 0 {
				return fmt.Errorf("the --analyse-row-number flag is only applicable together with --frame-number")
			}
			if inputPath == "" {
				return fmt.Errorf("--input-path is required")
			}

			return runAnalyze(inputPath, frameNumber, rowNumber)
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("input-path", "", "path to the GRP file to analyze")
	pf.Int("frame-number", -1, "inspect this single frame instead of the whole-file report")
	pf.Int("analyse-row-number", -1, "dump this row's raw bytes (requires --frame-number)")
	return cmd
}

func runAnalyze(inputPath string, frameNumber, rowNumber int) error {
	log := slog.Default()

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return grp.WrapError(grp.KindIO, err, "reading %s", inputPath)
	}
	archive, err := grp.Decode(data, log)
	if err != nil {
		return err
	}

	a := analyze.New(archive, data)

	if frameNumber >= 0 {
		return logSingleFrame(a, archive, frameNumber, rowNumber, log)
	}

	report := a.Analyze()
	report.Log(log)
	return nil
}

func logSingleFrame(a *analyze.Analyzer, archive *grp.Archive, frameNumber, rowNumber int, log *slog.Logger) error {
	if frameNumber >= len(archive.Frames) {
		return grp.NewError(grp.KindInvalidInput, "frame number %d is out of range (0-%d)", frameNumber, len(archive.Frames)-1)
	}
	f := archive.Frames[frameNumber]
	log.Info("analyzing frame",
		"frame", frameNumber, "x_offset", f.XOffset, "y_offset", f.YOffset,
		"width", f.EffectiveWidth(), "height", f.Height,
		"image_data_offset", fmt.Sprintf("0x%X", f.ImageDataOffset))

	if rowNumber < 0 {
		return nil
	}
	dump, err := a.DumpRow(frameNumber, rowNumber)
	if err != nil {
		return err
	}
	dump.Log(log)
	return nil
}

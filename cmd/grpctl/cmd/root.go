package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sjoblomj/irongrp-go/pkg/logging"
)

// NewRoot builds the grpctl command tree: grp-to-png, png-to-grp,
// analyse-grp, version, plus cobra's built-in completion command.
func NewRoot(ctx context.Context, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "grpctl",
		Short: "codec and analyzer for the legacy GRP sprite container format",
		Long:  "grpctl converts between GRP sprite archives and indexed PNG frames, and diagnoses the layout of an existing archive.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevelStr, _ := cmd.Flags().GetString("log-level")
			logFile, _ := cmd.Flags().GetString("log-file")

			var level slog.Level
			if err := level.UnmarshalText([]byte(strings.ToUpper(logLevelStr))); err != nil {
				level = slog.LevelInfo
			}

			var logger *slog.Logger
			if logFile != "" {
				logger = logging.FileLogger(logFile, false, level)
			} else {
				logger = logging.Logger(os.Stdout, false, level)
			}
			slog.SetDefault(logger)

			if err := level.UnmarshalText([]byte(strings.ToUpper(logLevelStr))); err != nil {
				slog.WarnContext(ctx, "invalid log level, defaulting to INFO", "level", logLevelStr, "error", err)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd, 0)
		},
	}

	root.AddCommand(
		NewVersionCmd(version),
		NewDecodeCmd(ctx),
		NewEncodeCmd(ctx),
		NewAnalyzeCmd(ctx),
	)

	pf := root.PersistentFlags()
	pf.String("log-level", "INFO", "log level (DEBUG, INFO, WARN, ERROR)")
	pf.String("log-file", "", "write logs to this file instead of stdout")

	return root
}

func printCommandTree(cmd *cobra.Command, indent int) {
	fmt.Println(strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, sub := range cmd.Commands() {
		printCommandTree(sub, indent+1)
	}
}

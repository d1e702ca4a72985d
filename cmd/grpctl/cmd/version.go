package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCmd reports the build version baked into the binary.
func NewVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the grpctl build version",
		Long:  "print the grpctl build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of voxbridge",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("voxbridge version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

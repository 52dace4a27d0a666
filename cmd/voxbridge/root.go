package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "voxbridge",
	Short: "voxbridge bridges phone calls to a realtime AI session",
	Long: `voxbridge answers telephony voice webhooks, connects the caller's audio
stream to a realtime AI session and handles turn taking, tool calls and
post-call summarization in between.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

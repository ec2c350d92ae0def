/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "deckmixctl",
	Short: "Command-line client for the deckmix control API",
	Long: `deckmixctl drives a running deckmix engine over its HTTP control API:
load tracks, start/stop transport, set tempo/pitch/volume/EQ, arm and trigger
beat sync, and move the crossfader.

Examples:
  deckmixctl deck load 0 track.pcm --sample-rate 48000
  deckmixctl deck play 0
  deckmixctl sync enable --slave 1 --master 0
  deckmixctl mixer crossfader 0.5`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "deckmix control API base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("DECKMIX_TOKEN"), "bearer token for authenticated routes")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var mixerCmd = &cobra.Command{
	Use:   "mixer",
	Short: "Control the crossfader",
}

var mixerCrossfaderCmd = &cobra.Command{
	Use:   "crossfader [position]",
	Short: "Set the crossfader position (0.0 = deck A, 1.0 = deck B)",
	Args:  cobra.ExactArgs(1),
	RunE:  runMixerCrossfader,
}

func init() {
	rootCmd.AddCommand(mixerCmd)
	mixerCmd.AddCommand(mixerCrossfaderCmd)
}

func runMixerCrossfader(cmd *cobra.Command, args []string) error {
	position, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid position %q: %w", args[0], err)
	}
	var resp map[string]float64
	if err := newAPIClient().do("POST", "/v1/mixer/crossfader", map[string]float64{"position": position}, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

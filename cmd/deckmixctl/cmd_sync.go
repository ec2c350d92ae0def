/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"github.com/spf13/cobra"
)

var (
	syncSlave  int
	syncMaster int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Control beat sync between the two decks",
}

var syncEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Arm sync, locking --slave's tempo to --master",
	RunE:  syncAction("/v1/sync/enable"),
}

var syncDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable sync for --slave",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp map[string]string
		if err := newAPIClient().do("POST", "/v1/sync/disable", map[string]int{"id": syncSlave}, &resp); err != nil {
			return err
		}
		printJSON(resp)
		return nil
	},
}

var syncAlignNowCmd = &cobra.Command{
	Use:   "align-now",
	Short: "Snap --slave's beat phase to --master immediately",
	RunE:  syncAction("/v1/sync/align-now"),
}

var syncPlaySyncedCmd = &cobra.Command{
	Use:   "play-synced",
	Short: "Start --slave so its next downbeat lands with --master's",
	RunE:  syncAction("/v1/sync/play-synced"),
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync state machine's current state",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp map[string]string
		if err := newAPIClient().do("GET", "/v1/sync/status", nil, &resp); err != nil {
			return err
		}
		printJSON(resp)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncEnableCmd, syncDisableCmd, syncAlignNowCmd, syncPlaySyncedCmd, syncStatusCmd)

	for _, c := range []*cobra.Command{syncEnableCmd, syncAlignNowCmd, syncPlaySyncedCmd} {
		c.Flags().IntVar(&syncSlave, "slave", 1, "slave deck id (0 or 1)")
		c.Flags().IntVar(&syncMaster, "master", 0, "master deck id (0 or 1)")
	}
	syncDisableCmd.Flags().IntVar(&syncSlave, "slave", 1, "deck id to disable sync for")
}

func syncAction(path string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var resp map[string]string
		if err := newAPIClient().do("POST", path, map[string]int{"slave": syncSlave, "master": syncMaster}, &resp); err != nil {
			return err
		}
		printJSON(resp)
		return nil
	}
}

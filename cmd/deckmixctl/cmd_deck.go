/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	deckLoadSampleRate int
	deckSeekSeconds    float64
	deckTempoRatio     float64
	deckPitchSemitones float64
	deckVolume         float64
	deckEQLow          float64
	deckEQMid          float64
	deckEQHigh         float64
	deckStartFrame     int64
	deckAnalyzePath    string
)

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Control a single deck (0 or 1)",
}

var deckLoadCmd = &cobra.Command{
	Use:   "load [deck-id] [raw-pcm-file]",
	Short: "Load a raw interleaved stereo float32 PCM file into a deck",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeckLoad,
}

var deckUnloadCmd = &cobra.Command{
	Use:   "unload [deck-id]",
	Short: "Discard the loaded buffer, leaving the deck empty and paused",
	Args:  cobra.ExactArgs(1),
	RunE:  deckAction("unload"),
}

var deckPlayCmd = &cobra.Command{
	Use:   "play [deck-id]",
	Short: "Start or resume playback",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeckPlay,
}

var deckPauseCmd = &cobra.Command{
	Use:   "pause [deck-id]",
	Short: "Pause playback, leaving the cursor in place",
	Args:  cobra.ExactArgs(1),
	RunE:  deckAction("pause"),
}

var deckStopCmd = &cobra.Command{
	Use:   "stop [deck-id]",
	Short: "Stop playback and reset the cursor to the start",
	Args:  cobra.ExactArgs(1),
	RunE:  deckAction("stop"),
}

var deckSeekCmd = &cobra.Command{
	Use:   "seek [deck-id]",
	Short: "Seek to a position in seconds",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeckSeek,
}

var deckTempoCmd = &cobra.Command{
	Use:   "tempo [deck-id]",
	Short: "Set the tempo ratio (0.5-2.0)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeckTempo,
}

var deckPitchCmd = &cobra.Command{
	Use:   "pitch [deck-id]",
	Short: "Set the pitch shift in semitones (-12 to 12)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeckPitch,
}

var deckVolumeCmd = &cobra.Command{
	Use:   "volume [deck-id]",
	Short: "Set the output volume (0.0-1.0)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeckVolume,
}

var deckEQCmd = &cobra.Command{
	Use:   "eq [deck-id]",
	Short: "Set per-band EQ gains",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeckEQ,
}

var deckAnalyzeCmd = &cobra.Command{
	Use:   "analyze [deck-id]",
	Short: "Run BPM and beat-offset detection on the loaded buffer",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeckAnalyze,
}

var deckStatusCmd = &cobra.Command{
	Use:   "status [deck-id]",
	Short: "Show a deck's transport and parameter snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeckStatus,
}

func init() {
	rootCmd.AddCommand(deckCmd)
	deckCmd.AddCommand(deckLoadCmd, deckUnloadCmd, deckPlayCmd, deckPauseCmd, deckStopCmd, deckSeekCmd,
		deckTempoCmd, deckPitchCmd, deckVolumeCmd, deckEQCmd, deckAnalyzeCmd, deckStatusCmd)

	deckLoadCmd.Flags().IntVar(&deckLoadSampleRate, "sample-rate", 48000, "sample rate of the PCM file")

	deckPlayCmd.Flags().Int64Var(&deckStartFrame, "start-frame", -1, "optional source frame to jump to before playing")

	deckSeekCmd.Flags().Float64Var(&deckSeekSeconds, "seconds", 0, "position to seek to")
	deckSeekCmd.MarkFlagRequired("seconds")

	deckTempoCmd.Flags().Float64Var(&deckTempoRatio, "ratio", 1.0, "tempo ratio")

	deckPitchCmd.Flags().Float64Var(&deckPitchSemitones, "semitones", 0, "pitch shift in semitones")

	deckVolumeCmd.Flags().Float64Var(&deckVolume, "level", 1.0, "volume level")

	deckEQCmd.Flags().Float64Var(&deckEQLow, "low", 1.0, "low band gain")
	deckEQCmd.Flags().Float64Var(&deckEQMid, "mid", 1.0, "mid band gain")
	deckEQCmd.Flags().Float64Var(&deckEQHigh, "high", 1.0, "high band gain")

	deckAnalyzeCmd.Flags().StringVar(&deckAnalyzePath, "path", "", "source path identity for cache lookups")
}

func parseDeckID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || (id != 0 && id != 1) {
		return 0, fmt.Errorf("deck id must be 0 or 1, got %q", arg)
	}
	return id, nil
}

func readRawPCM(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pcm file: %w", err)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("pcm file length %d is not a multiple of 4 bytes", len(data))
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}

func runDeckLoad(cmd *cobra.Command, args []string) error {
	id, err := parseDeckID(args[0])
	if err != nil {
		return err
	}
	samples, err := readRawPCM(args[1])
	if err != nil {
		return err
	}

	var resp map[string]string
	if err := newAPIClient().do("POST", fmt.Sprintf("/v1/decks/%d/load", id), map[string]any{
		"sample_rate": deckLoadSampleRate,
		"samples":     samples,
	}, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runDeckPlay(cmd *cobra.Command, args []string) error {
	id, err := parseDeckID(args[0])
	if err != nil {
		return err
	}
	body := map[string]any{}
	if deckStartFrame >= 0 {
		body["start_frame"] = deckStartFrame
	}
	var resp map[string]string
	if err := newAPIClient().do("POST", fmt.Sprintf("/v1/decks/%d/play", id), body, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func deckAction(verb string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseDeckID(args[0])
		if err != nil {
			return err
		}
		var resp map[string]string
		if err := newAPIClient().do("POST", fmt.Sprintf("/v1/decks/%d/%s", id, verb), nil, &resp); err != nil {
			return err
		}
		printJSON(resp)
		return nil
	}
}

func runDeckSeek(cmd *cobra.Command, args []string) error {
	id, err := parseDeckID(args[0])
	if err != nil {
		return err
	}
	var resp map[string]string
	if err := newAPIClient().do("POST", fmt.Sprintf("/v1/decks/%d/seek", id), map[string]float64{"seconds": deckSeekSeconds}, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runDeckTempo(cmd *cobra.Command, args []string) error {
	id, err := parseDeckID(args[0])
	if err != nil {
		return err
	}
	var resp map[string]float64
	if err := newAPIClient().do("POST", fmt.Sprintf("/v1/decks/%d/tempo", id), map[string]float64{"ratio": deckTempoRatio}, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runDeckPitch(cmd *cobra.Command, args []string) error {
	id, err := parseDeckID(args[0])
	if err != nil {
		return err
	}
	var resp map[string]float64
	if err := newAPIClient().do("POST", fmt.Sprintf("/v1/decks/%d/pitch", id), map[string]float64{"semitones": deckPitchSemitones}, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runDeckVolume(cmd *cobra.Command, args []string) error {
	id, err := parseDeckID(args[0])
	if err != nil {
		return err
	}
	var resp map[string]float64
	if err := newAPIClient().do("POST", fmt.Sprintf("/v1/decks/%d/volume", id), map[string]float64{"volume": deckVolume}, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runDeckEQ(cmd *cobra.Command, args []string) error {
	id, err := parseDeckID(args[0])
	if err != nil {
		return err
	}
	var resp map[string]string
	body := map[string]any{}
	if cmd.Flags().Changed("low") {
		body["low"] = deckEQLow
	}
	if cmd.Flags().Changed("mid") {
		body["mid"] = deckEQMid
	}
	if cmd.Flags().Changed("high") {
		body["high"] = deckEQHigh
	}
	if err := newAPIClient().do("POST", fmt.Sprintf("/v1/decks/%d/eq", id), body, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runDeckAnalyze(cmd *cobra.Command, args []string) error {
	id, err := parseDeckID(args[0])
	if err != nil {
		return err
	}
	var resp map[string]any
	if err := newAPIClient().do("POST", fmt.Sprintf("/v1/decks/%d/analyze", id), map[string]string{"path": deckAnalyzePath}, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

func runDeckStatus(cmd *cobra.Command, args []string) error {
	id, err := parseDeckID(args[0])
	if err != nil {
		return err
	}
	var resp map[string]any
	if err := newAPIClient().do("GET", fmt.Sprintf("/v1/decks/%d/status", id), nil, &resp); err != nil {
		return err
	}
	printJSON(resp)
	return nil
}

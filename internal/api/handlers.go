/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/deckmix/internal/analysis"
	"github.com/friendsincode/deckmix/internal/audiobuffer"
	"github.com/friendsincode/deckmix/internal/deck"
	"github.com/friendsincode/deckmix/internal/status"
)

func (a *API) deckFromRequest(w http.ResponseWriter, r *http.Request) (*deck.Deck, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "deckID"))
	if err != nil || (id != 0 && id != 1) {
		writeStatusErr(w, status.New(status.InvalidArgument, "deck id must be 0 or 1"))
		return nil, false
	}
	return a.engine.Decks[id], true
}

type loadRequest struct {
	SampleRate int       `json:"sample_rate"`
	Samples    []float32 `json:"samples"` // interleaved stereo PCM
}

func (a *API) handleDeckLoad(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "invalid request body"))
		return
	}
	buf, err := audiobuffer.New(req.Samples, req.SampleRate)
	if err != nil {
		writeStatusErr(w, status.New(status.DecodeFailed, err.Error()))
		return
	}
	if err := d.Load(buf); err != nil {
		writeStatusErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

type playRequest struct {
	StartFrame *int64 `json:"start_frame,omitempty"`
}

func (a *API) handleDeckPlay(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	var req playRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // empty body is a valid "resume from cursor"
	if err := d.Play(req.StartFrame); err != nil {
		writeStatusErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

func (a *API) handleDeckUnload(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	d.Unload()
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

func (a *API) handleDeckPause(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	d.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

func (a *API) handleDeckStop(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	d.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

type seekRequest struct {
	Seconds float64 `json:"seconds"`
}

func (a *API) handleDeckSeek(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "invalid request body"))
		return
	}
	if err := d.Seek(req.Seconds); err != nil {
		writeStatusErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

type tempoRequest struct {
	Ratio float64 `json:"ratio"`
}

func (a *API) handleDeckSetTempo(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	var req tempoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "invalid request body"))
		return
	}
	d.SetTempo(req.Ratio)
	writeJSON(w, http.StatusOK, map[string]float64{"ratio": d.TempoRatio()})
}

type pitchRequest struct {
	Semitones float64 `json:"semitones"`
}

func (a *API) handleDeckSetPitch(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	var req pitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "invalid request body"))
		return
	}
	d.SetPitch(req.Semitones)
	writeJSON(w, http.StatusOK, map[string]float64{"semitones": d.Pitch()})
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

func (a *API) handleDeckSetVolume(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "invalid request body"))
		return
	}
	d.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, map[string]float64{"volume": d.Volume()})
}

type eqRequest struct {
	Low  *float64 `json:"low,omitempty"`
	Mid  *float64 `json:"mid,omitempty"`
	High *float64 `json:"high,omitempty"`
}

func (a *API) handleDeckSetEQ(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	var req eqRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "invalid request body"))
		return
	}
	if req.Low != nil {
		d.SetEQLow(*req.Low)
	}
	if req.Mid != nil {
		d.SetEQMid(*req.Mid)
	}
	if req.High != nil {
		d.SetEQHigh(*req.High)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

type analyzeRequest struct {
	Path    string `json:"path,omitempty"`
	Size    int64  `json:"size,omitempty"`
	ModTime int64  `json:"mod_time,omitempty"` // unix seconds
}

type analyzeResponse struct {
	BPM        float64 `json:"bpm"`
	BeatOffset float64 `json:"beat_offset"`
	Cached     bool    `json:"cached"`
}

// handleDeckAnalyze runs BPM/beat-offset detection on the deck's currently
// loaded buffer, consulting the analysis cache first when a path/size/mtime
// identity is supplied.
func (a *API) handleDeckAnalyze(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	buf := d.Buffer()
	if buf == nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "no buffer loaded"))
		return
	}

	var req analyzeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if a.cache != nil && req.Path != "" {
		if row, hit := a.cache.Lookup(req.Path, req.Size, time.Unix(req.ModTime, 0)); hit {
			d.SetBPM(row.BPM)
			d.SetBeatOffset(row.BeatOffset)
			writeJSON(w, http.StatusOK, analyzeResponse{BPM: row.BPM, BeatOffset: row.BeatOffset, Cached: true})
			return
		}
	}

	samples := buf.Samples()
	bpm := analysis.DetectBPM(samples, buf.SampleRate())
	offset := analysis.DetectBeatOffset(samples, buf.SampleRate())

	if bpm > 0 {
		d.SetBPM(bpm)
	}
	d.SetBeatOffset(offset)

	if a.cache != nil && req.Path != "" {
		if err := a.cache.Store(req.Path, req.Size, time.Unix(req.ModTime, 0), bpm, offset); err != nil {
			a.logger.Warn().Err(err).Msg("failed to store analysis cache entry")
		}
	}

	writeJSON(w, http.StatusOK, analyzeResponse{BPM: bpm, BeatOffset: offset})
}

type deckStatusResponse struct {
	ID         int     `json:"id"`
	Playing    bool    `json:"playing"`
	Position   float64 `json:"position_seconds"`
	Duration   float64 `json:"duration_seconds"`
	Tempo      float64 `json:"tempo_ratio"`
	Pitch      float64 `json:"pitch_semitones"`
	Volume     float64 `json:"volume"`
	BPM        float64 `json:"bpm"`
	BeatOffset float64 `json:"beat_offset"`
}

func (a *API) handleDeckStatus(w http.ResponseWriter, r *http.Request) {
	d, ok := a.deckFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, deckStatusResponse{
		ID:         d.ID(),
		Playing:    d.IsPlaying(),
		Position:   d.PositionSeconds(),
		Duration:   d.DurationSeconds(),
		Tempo:      d.TempoRatio(),
		Pitch:      d.Pitch(),
		Volume:     d.Volume(),
		BPM:        d.BPM(),
		BeatOffset: d.BeatOffset(),
	})
}

type crossfaderRequest struct {
	Position float64 `json:"position"`
}

func (a *API) handleMixerCrossfader(w http.ResponseWriter, r *http.Request) {
	var req crossfaderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "invalid request body"))
		return
	}
	a.engine.Mixer.SetCrossfader(req.Position)
	writeJSON(w, http.StatusOK, map[string]float64{"position": a.engine.Mixer.Crossfader()})
}

type syncSlotRequest struct {
	Slave  int `json:"slave"`
	Master int `json:"master"`
}

func (a *API) syncDecks(w http.ResponseWriter, r *http.Request) (slave, master *deck.Deck, ok bool) {
	var req syncSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "invalid request body"))
		return nil, nil, false
	}
	if req.Slave != 0 && req.Slave != 1 {
		writeStatusErr(w, status.New(status.InvalidArgument, "slave must be 0 or 1"))
		return nil, nil, false
	}
	if req.Master != 0 && req.Master != 1 {
		writeStatusErr(w, status.New(status.InvalidArgument, "master must be 0 or 1"))
		return nil, nil, false
	}
	if req.Slave == req.Master {
		writeStatusErr(w, status.New(status.InvalidArgument, "slave and master must differ"))
		return nil, nil, false
	}
	return a.engine.Decks[req.Slave], a.engine.Decks[req.Master], true
}

func (a *API) handleSyncEnable(w http.ResponseWriter, r *http.Request) {
	slave, master, ok := a.syncDecks(w, r)
	if !ok {
		return
	}
	a.engine.Sync.Enable(slave, master)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

type syncDisableRequest struct {
	ID int `json:"id"`
}

func (a *API) handleSyncDisable(w http.ResponseWriter, r *http.Request) {
	var req syncDisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusErr(w, status.New(status.InvalidArgument, "invalid request body"))
		return
	}
	a.engine.Sync.Disable(req.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

func (a *API) handleSyncAlignNow(w http.ResponseWriter, r *http.Request) {
	slave, master, ok := a.syncDecks(w, r)
	if !ok {
		return
	}
	if err := a.engine.Sync.AlignNow(slave, master); err != nil {
		writeStatusErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

func (a *API) handleSyncPlaySynced(w http.ResponseWriter, r *http.Request) {
	slave, master, ok := a.syncDecks(w, r)
	if !ok {
		return
	}
	if err := a.engine.Sync.PlaySynced(slave, master); err != nil {
		writeStatusErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status.OK)})
}

func (a *API) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"state": string(a.engine.Sync.State())})
}

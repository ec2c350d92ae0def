/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/deckmix/internal/engine"
	"github.com/friendsincode/deckmix/internal/events"
)

func newTestAPI(t *testing.T) (*API, *httptest.Server) {
	t.Helper()
	bus := events.NewBus()
	eng := engine.New(engine.Config{SampleRate: 48000, BufferSize: 512}, bus, zerolog.Nop())
	a := New(eng, bus, nil, nil, zerolog.Nop())
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return a, srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	return resp
}

func TestHealth_ReturnsOK(t *testing.T) {
	_, srv := newTestAPI(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/health", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestDeckLoadThenStatus_RoundTrips(t *testing.T) {
	_, srv := newTestAPI(t)

	samples := make([]float32, 200)
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/decks/0/load", loadRequest{SampleRate: 48000, Samples: samples})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("load status = %d, want 200", resp.StatusCode)
	}

	resp2 := doJSON(t, http.MethodGet, srv.URL+"/v1/decks/0/status", nil)
	defer resp2.Body.Close()
	var status deckStatusResponse
	if err := json.NewDecoder(resp2.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Playing {
		t.Fatal("expected deck to be paused immediately after load")
	}
}

func TestDeckUnload_ClearsLoadedBuffer(t *testing.T) {
	_, srv := newTestAPI(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/decks/0/load", loadRequest{SampleRate: 48000, Samples: make([]float32, 100)})
	resp.Body.Close()

	resp2 := doJSON(t, http.MethodPost, srv.URL+"/v1/decks/0/unload", nil)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("unload status = %d, want 200", resp2.StatusCode)
	}

	resp3 := doJSON(t, http.MethodPost, srv.URL+"/v1/decks/0/play", nil)
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusBadRequest {
		t.Fatalf("play after unload status = %d, want 400 (no buffer loaded)", resp3.StatusCode)
	}
}

func TestDeckLoad_RejectsInvalidDeckID(t *testing.T) {
	_, srv := newTestAPI(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/decks/7/load", loadRequest{SampleRate: 48000})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeckPlay_RejectsWhenNoBufferLoaded(t *testing.T) {
	_, srv := newTestAPI(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/decks/1/play", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (invalid_argument)", resp.StatusCode)
	}
}

func TestMixerCrossfader_SetsAndReflectsPosition(t *testing.T) {
	_, srv := newTestAPI(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/mixer/crossfader", crossfaderRequest{Position: 0.75})
	defer resp.Body.Close()
	var got map[string]float64
	json.NewDecoder(resp.Body).Decode(&got)
	if got["position"] != 0.75 {
		t.Fatalf("position = %v, want 0.75", got["position"])
	}
}

func TestSyncEnableThenStatus_ReportsArmed(t *testing.T) {
	_, srv := newTestAPI(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/sync/enable", syncSlotRequest{Slave: 1, Master: 0})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable status = %d, want 200", resp.StatusCode)
	}

	resp2 := doJSON(t, http.MethodGet, srv.URL+"/v1/sync/status", nil)
	defer resp2.Body.Close()
	var got map[string]string
	json.NewDecoder(resp2.Body).Decode(&got)
	if got["state"] != "armed" {
		t.Fatalf("state = %v, want armed", got["state"])
	}
}

func TestSyncAlignNow_RejectsSameSlaveAndMaster(t *testing.T) {
	_, srv := newTestAPI(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/sync/align-now", syncSlotRequest{Slave: 0, Master: 0})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

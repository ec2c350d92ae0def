/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew_RegistersAllCollectorsWithoutPanicking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CallbackUnderruns.Inc()
	m.EventsDropped.WithLabelValues("position").Inc()
	m.DeckPlaying.WithLabelValues("0").Set(1)
	m.SyncState.Set(2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestMetrics_CallbackUnderrunsIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CallbackUnderruns.Add(3)

	metric := &dto.Metric{}
	if err := m.CallbackUnderruns.Write(metric); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 3 {
		t.Fatalf("CallbackUnderruns = %v, want 3", got)
	}
}

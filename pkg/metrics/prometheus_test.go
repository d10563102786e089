package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// value reads a counter or gauge from the registry, matching label values in
// declaration order
func value(t *testing.T, m *Metrics, name string, labels ...string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			match := true
			for i, pair := range pairs {
				if pair.GetValue() != labels[i] {
					match = false
				}
			}
			if !match {
				continue
			}
			if metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return 0
}

func TestNewMetricsIndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordChunk(1920)
	a.RecordChunk(1666)

	if got := value(t, a, "practice_audio_chunks_sent_total"); got != 2 {
		t.Errorf("Expected 2 chunks, got %v", got)
	}
	if got := value(t, a, "practice_audio_bytes_total"); got != float64((1920+1666)*2) {
		t.Errorf("Expected %d bytes, got %v", (1920+1666)*2, got)
	}
	if got := value(t, b, "practice_audio_chunks_sent_total"); got != 0 {
		t.Errorf("Second registry should be untouched, got %v", got)
	}
}

func TestLabelledCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordConnect(true)
	m.RecordConnect(false)
	m.RecordConnect(false)
	m.RecordMessageReceived("status")
	m.RecordMessageSent("end-turn")

	if got := value(t, m, "practice_channel_connects_total", "failed"); got != 2 {
		t.Errorf("Expected 2 failed connects, got %v", got)
	}
	if got := value(t, m, "practice_messages_received_total", "status"); got != 1 {
		t.Errorf("Expected 1 status message, got %v", got)
	}
	if got := value(t, m, "practice_messages_sent_total", "end-turn"); got != 1 {
		t.Errorf("Expected 1 end-turn message, got %v", got)
	}
}

func TestSessionGauge(t *testing.T) {
	m := NewMetrics()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	if got := value(t, m, "practice_server_active_sessions"); got != 1 {
		t.Errorf("Expected 1 active session, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordChunk(10)
	m.RecordConnect(true)
	m.RecordFeedback(time.Second)
	m.SetPhase(3)
	m.SessionOpened()
	if err := m.Serve(context.Background(), ":0"); err != nil {
		t.Errorf("Expected nil from Serve on nil metrics, got %v", err)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordTurn()
	m.SetPhase(5)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, line := range []string{"practice_turns_total 1", "practice_session_phase 5"} {
		if !strings.Contains(string(body), line) {
			t.Errorf("Expected %q in scrape output", line)
		}
	}
}

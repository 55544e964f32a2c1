package fleetview

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"RUNNING", StatusRunning},
		{"running", StatusRunning},
		{" Staging ", StatusStaging},
		{"TERMINATED", StatusTerminated},
		{"TOTAL", StatusUnknown},
		{"SUSPENDED", StatusUnknown},
		{"", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseStatus(tt.raw); got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseTerminalStatus(t *testing.T) {
	for _, raw := range []string{"RUNNING", "serving"} {
		if _, err := ParseTerminalStatus(raw); err != nil {
			t.Errorf("ParseTerminalStatus(%q) error = %v", raw, err)
		}
	}
	for _, raw := range []string{"STAGING", "TOTAL", ""} {
		if _, err := ParseTerminalStatus(raw); err == nil {
			t.Errorf("ParseTerminalStatus(%q) error = nil", raw)
		}
	}
}

// TestSummarize_CountsAddUpToTotal checks the per-status counts always sum to
// TOTAL, whatever the API reports.
func TestSummarize_CountsAddUpToTotal(t *testing.T) {
	tests := []struct {
		name      string
		instances map[string]Instance
	}{
		{"empty", map[string]Instance{}},
		{"nil", nil},
		{"mixed", map[string]Instance{
			"a": {Status: StatusRunning},
			"b": {Status: StatusRunning},
			"c": {Status: StatusStaging},
			"d": {Status: StatusTerminated},
		}},
		{"unrecognised", map[string]Instance{
			"a": {Status: "REPAIRING"},
			"b": {Status: StatusTotal},
			"c": {Status: "serving"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := Summarize(tt.instances)

			sum := 0
			for _, s := range Statuses {
				n, ok := summary[s]
				if !ok {
					t.Errorf("summary missing %v", s)
				}
				sum += n
			}
			if sum != summary.Count(StatusTotal) {
				t.Errorf("sum of statuses = %d, TOTAL = %d", sum, summary.Count(StatusTotal))
			}
			if summary.Count(StatusTotal) != len(tt.instances) {
				t.Errorf("TOTAL = %d, want %d", summary.Count(StatusTotal), len(tt.instances))
			}
		})
	}
}

func TestDecodeSnapshot(t *testing.T) {
	polledAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"instances": {
		"fractal-b": {"status": "RUNNING", "externalIp": "10.0.0.2"},
		"fractal-a": {"status": "staging"}
	}}`)

	snap, err := decodeSnapshot(body, polledAt)
	if err != nil {
		t.Fatalf("decodeSnapshot() error = %v", err)
	}
	if snap.Alive() != 2 || snap.Running() != 1 {
		t.Errorf("alive=%d running=%d, want 2 and 1", snap.Alive(), snap.Running())
	}
	if !snap.PolledAt.Equal(polledAt) {
		t.Errorf("PolledAt = %v, want %v", snap.PolledAt, polledAt)
	}

	sorted := snap.Sorted()
	if sorted[0].Name != "fractal-a" || sorted[1].Name != "fractal-b" {
		t.Errorf("Sorted() = %v", sorted)
	}
	if sorted[0].Status != StatusStaging {
		t.Errorf("status = %v, want STAGING", sorted[0].Status)
	}
	if sorted[1].ExternalIP != "10.0.0.2" {
		t.Errorf("ExternalIP = %q", sorted[1].ExternalIP)
	}
}

func TestDecodeSnapshot_EmptyAndMissing(t *testing.T) {
	for _, body := range []string{`{"instances": {}}`, `{"instances": null}`} {
		snap, err := decodeSnapshot([]byte(body), time.Time{})
		if err != nil {
			t.Errorf("decodeSnapshot(%s) error = %v", body, err)
			continue
		}
		if snap.Alive() != 0 {
			t.Errorf("decodeSnapshot(%s) alive = %d", body, snap.Alive())
		}
	}

	if _, err := decodeSnapshot([]byte(`{}`), time.Time{}); err == nil {
		t.Error("decodeSnapshot({}) error = nil, want missing field error")
	}
}

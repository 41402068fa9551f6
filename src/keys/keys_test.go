package keys

import (
	"errors"
	"testing"
)

func TestSequenceFor(t *testing.T) {
	tests := []struct {
		goos     string
		modifier string
	}{
		{"darwin", "cmd"},
		{"windows", "ctrl"},
		{"linux", "ctrl"},
		{"freebsd", "ctrl"},
	}
	for _, tt := range tests {
		seq := SequenceFor(tt.goos)
		if seq.Modifier != tt.modifier {
			t.Errorf("SequenceFor(%q).Modifier = %q, want %q", tt.goos, seq.Modifier, tt.modifier)
		}
		if seq.CopyKey != "c" || seq.PasteKey != "v" {
			t.Errorf("SequenceFor(%q) = %+v, want c/v keys", tt.goos, seq)
		}
	}
}

type tapCall struct {
	key  string
	args []interface{}
}

func TestRobotgoSimulatorTapsChords(t *testing.T) {
	var calls []tapCall
	sim := &robotgoSimulator{
		seq: SequenceFor("darwin"),
		tap: func(key string, args ...interface{}) error {
			calls = append(calls, tapCall{key: key, args: args})
			return nil
		},
	}

	if err := sim.Copy(); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if err := sim.Paste(); err != nil {
		t.Fatalf("Paste: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("Expected 2 taps, got %d", len(calls))
	}
	if calls[0].key != "c" || calls[1].key != "v" {
		t.Fatalf("Unexpected tap order: %+v", calls)
	}
	for _, c := range calls {
		if len(c.args) != 1 || c.args[0] != "cmd" {
			t.Fatalf("Expected cmd modifier, got %v", c.args)
		}
	}
}

func TestRobotgoSimulatorReportsError(t *testing.T) {
	wantErr := errors.New("no display")
	sim := &robotgoSimulator{
		seq: SequenceFor("linux"),
		tap: func(string, ...interface{}) error { return wantErr },
	}
	if err := sim.Copy(); !errors.Is(err, wantErr) {
		t.Fatalf("Expected %v, got %v", wantErr, err)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New("telepathy"); err == nil {
		t.Fatal("Expected error for unknown backend")
	}
}

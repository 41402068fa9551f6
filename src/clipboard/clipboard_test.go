package clipboard

import (
	"errors"
	"testing"
)

type fakeBackend struct {
	data     []byte
	readErr  error
	writeErr error
	writes   int
}

func (f *fakeBackend) read() ([]byte, error) { return f.data, f.readErr }

func (f *fakeBackend) write(data []byte) error {
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.data = append([]byte(nil), data...)
	return nil
}

func TestTextRoundTrip(t *testing.T) {
	fb := &fakeBackend{}
	a := newWithBackend("fake", fb)

	if err := a.SetText("The cat sat."); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	got, err := a.Text()
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "The cat sat." {
		t.Fatalf("Expected %q, got %q", "The cat sat.", got)
	}
}

func TestTextUnavailable(t *testing.T) {
	tests := []struct {
		name string
		fb   *fakeBackend
	}{
		{"empty", &fakeBackend{}},
		{"read error", &fakeBackend{readErr: errors.New("exit status 1")}},
		{"binary data", &fakeBackend{data: []byte{0xff, 0xfe, 0x00}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newWithBackend("fake", tt.fb)
			_, err := a.Text()
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("Expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestSetTextWriteFailed(t *testing.T) {
	fb := &fakeBackend{data: []byte("before"), writeErr: errors.New("denied")}
	a := newWithBackend("fake", fb)

	err := a.SetText("after")
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("Expected ErrWriteFailed, got %v", err)
	}
	if string(fb.data) != "before" {
		t.Fatalf("Expected clipboard unchanged, got %q", fb.data)
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := New("carrier-pigeon"); err == nil {
		t.Fatal("Expected error for unknown backend")
	}
}

func TestNativeWrite(t *testing.T) {
	// Needs a desktop session; headless CI has no clipboard.
	a, err := New(BackendNative)
	if err != nil {
		t.Skipf("clipboard unavailable in this environment: %v", err)
	}
	if err := a.SetText("grammar-fix test text"); err != nil {
		t.Logf("Failed to write to clipboard: %v", err)
	}
}

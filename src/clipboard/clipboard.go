package clipboard

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	atotto "github.com/atotto/clipboard"
	xclip "golang.design/x/clipboard"
)

const (
	BackendNative = "native"
	BackendExec   = "exec"
)

var (
	// ErrUnavailable means the clipboard holds no text, or text that cannot be read.
	ErrUnavailable = errors.New("clipboard text unavailable")
	// ErrWriteFailed means the OS rejected a clipboard write.
	ErrWriteFailed = errors.New("clipboard write failed")
)

type backend interface {
	read() ([]byte, error)
	write(data []byte) error
}

// Adapter is the process-wide text clipboard. Build it once at startup;
// calls are serialised.
type Adapter struct {
	mu   sync.Mutex
	b    backend
	name string
}

// New initialises the named backend. "native" talks to the OS clipboard
// directly, "exec" goes through pbcopy/xclip/xsel/wl-clipboard.
func New(kind string) (*Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendNative:
		if err := xclip.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
		}
		return newWithBackend(BackendNative, nativeBackend{}), nil
	case BackendExec:
		if atotto.Unsupported {
			return nil, errors.New("failed to initialize clipboard: no clipboard utility found (install xclip, xsel or wl-clipboard)")
		}
		return newWithBackend(BackendExec, execBackend{}), nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", kind)
	}
}

func newWithBackend(name string, b backend) *Adapter {
	return &Adapter{b: b, name: name}
}

func (a *Adapter) Backend() string { return a.name }

// Text returns the current clipboard text.
func (a *Adapter) Text() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := a.b.read()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: clipboard is empty or holds a non-text format", ErrUnavailable)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: clipboard text is not valid UTF-8", ErrUnavailable)
	}
	return string(data), nil
}

// SetText replaces the clipboard contents with text.
func (a *Adapter) SetText(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.b.write([]byte(text)); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

type nativeBackend struct{}

func (nativeBackend) read() ([]byte, error) {
	return xclip.Read(xclip.FmtText), nil
}

func (nativeBackend) write(data []byte) error {
	// Write returns a nil channel when the platform refused the data.
	if changed := xclip.Write(xclip.FmtText, data); changed == nil {
		return errors.New("platform rejected text write")
	}
	return nil
}

type execBackend struct{}

func (execBackend) read() ([]byte, error) {
	s, err := atotto.ReadAll()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (execBackend) write(data []byte) error {
	return atotto.WriteAll(string(data))
}

package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"grammar-fix/src/pipeline"
	"grammar-fix/src/singleinstance"
)

type fakeListener struct {
	mu   sync.Mutex
	fire func()
	err  error
}

func (f *fakeListener) Start(ctx context.Context, fire func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.fire = fire
	return nil
}

func (f *fakeListener) Backend() string { return "fake" }

func (f *fakeListener) press() {
	f.mu.Lock()
	fire := f.fire
	f.mu.Unlock()
	fire()
}

func (f *fakeListener) started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fire != nil
}

type fakeServer struct {
	onTrigger singleinstance.TriggerFunc
	startErr  error
	closed    bool
}

func (s *fakeServer) Start(ctx context.Context) error { return s.startErr }
func (s *fakeServer) Port() int                       { return 49600 }
func (s *fakeServer) Close() error                    { s.closed = true; return nil }

type countingKeys struct {
	mu     sync.Mutex
	pastes int
}

func (k *countingKeys) Copy() error { return nil }
func (k *countingKeys) Paste() error {
	k.mu.Lock()
	k.pastes++
	k.mu.Unlock()
	return nil
}

func (k *countingKeys) count() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pastes
}

type staticClipboard struct{}

func (staticClipboard) Text() (string, error) { return "text", nil }
func (staticClipboard) SetText(string) error  { return nil }

type echoCorrector struct{}

func (echoCorrector) Correct(ctx context.Context, text string) (string, error) { return text, nil }

func newPipeline(t *testing.T, keys *countingKeys) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(pipeline.Options{Keys: keys, Clipboard: staticClipboard{}, Corrector: echoCorrector{}})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoopProcessesBothProducers(t *testing.T) {
	keys := &countingKeys{}
	lis := &fakeListener{}
	srv := &fakeServer{}
	loop, err := New(Options{
		Listener: lis,
		Pipeline: newPipeline(t, keys),
		NewServer: func(fn singleinstance.TriggerFunc) singleinstance.Server {
			srv.onTrigger = fn
			return srv
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, lis.started)
	lis.press()
	lis.press()
	if _, err := srv.onTrigger(); err != nil {
		t.Fatalf("remote trigger: %v", err)
	}

	waitFor(t, func() bool { return keys.count() == 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if !srv.closed {
		t.Fatal("Expected server to be closed on shutdown")
	}
}

func TestLoopServerStartFailure(t *testing.T) {
	lis := &fakeListener{}
	loop, err := New(Options{
		Listener: lis,
		Pipeline: newPipeline(t, &countingKeys{}),
		NewServer: func(singleinstance.TriggerFunc) singleinstance.Server {
			return &fakeServer{startErr: singleinstance.ErrAlreadyRunning}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = loop.Run(context.Background())
	if !errors.Is(err, singleinstance.ErrAlreadyRunning) {
		t.Fatalf("Expected ErrAlreadyRunning, got %v", err)
	}
	if lis.started() {
		t.Fatal("Hotkey must not start when another resident owns the port")
	}
}

func TestLoopHotkeyStartFailure(t *testing.T) {
	hookErr := errors.New("hook unavailable")
	loop, err := New(Options{
		Listener: &fakeListener{err: hookErr},
		Pipeline: newPipeline(t, &countingKeys{}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := loop.Run(context.Background()); !errors.Is(err, hookErr) {
		t.Fatalf("Expected hook error, got %v", err)
	}
}

func TestEnqueueReportsBacklog(t *testing.T) {
	loop, err := New(Options{Listener: &fakeListener{}, Pipeline: newPipeline(t, &countingKeys{})})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for want := 1; want <= 3; want++ {
		if got := loop.Enqueue("test"); got != want {
			t.Fatalf("Expected backlog %d, got %d", want, got)
		}
	}
	if loop.Backlog() != 3 {
		t.Fatalf("Expected backlog 3, got %d", loop.Backlog())
	}
}

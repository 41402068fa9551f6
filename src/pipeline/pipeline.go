// Package pipeline runs one grammar correction per trigger:
// copy the selection, read it, correct it, write it back, paste it.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"grammar-fix/src/logutil"
	"grammar-fix/src/queue"
)

type State int32

const (
	Idle State = iota
	Copying
	Reading
	Correcting
	Writing
	Pasting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Copying:
		return "copying"
	case Reading:
		return "reading"
	case Correcting:
		return "correcting"
	case Writing:
		return "writing"
	case Pasting:
		return "pasting"
	default:
		return "unknown"
	}
}

// Keys synthesizes the platform copy and paste chords.
type Keys interface {
	Copy() error
	Paste() error
}

type Clipboard interface {
	Text() (string, error)
	SetText(text string) error
}

type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

// Source yields triggers one at a time, blocking while none are pending.
type Source interface {
	Receive(ctx context.Context) (queue.Trigger, error)
}

type Options struct {
	Keys      Keys
	Clipboard Clipboard
	Corrector Corrector
	// SettleDelay is how long to wait after the copy chord before reading the clipboard.
	SettleDelay time.Duration
	// OnTransition, if set, is called on the consumer goroutine for every state change.
	OnTransition func(run uint64, from, to State)
	Logger       *zap.SugaredLogger
}

// Result describes one finished run.
type Result struct {
	Run     uint64
	Trigger queue.Trigger
	// Reached is the last state entered before returning to Idle.
	Reached State
	// Err is nil only when the corrected text was pasted.
	Err     error
	Changed bool

	Settle  time.Duration
	Correct time.Duration
	Total   time.Duration
}

type Pipeline struct {
	opts  Options
	log   *zap.SugaredLogger
	mu    sync.Mutex
	runs  uint64
	state atomic.Int32
}

func New(opts Options) (*Pipeline, error) {
	if opts.Keys == nil {
		return nil, errors.New("pipeline: Keys is required")
	}
	if opts.Clipboard == nil {
		return nil, errors.New("pipeline: Clipboard is required")
	}
	if opts.Corrector == nil {
		return nil, errors.New("pipeline: Corrector is required")
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pipeline{opts: opts, log: log}, nil
}

// State reports the state of the run in progress, or Idle.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Runs reports how many runs have started.
func (p *Pipeline) Runs() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs
}

// Run consumes triggers from src until ctx is cancelled. Each trigger is
// processed to completion before the next one is received.
func (p *Pipeline) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		trig, err := src.Receive(ctx)
		if err != nil {
			return err
		}
		p.Process(ctx, trig)
	}
}

// Process executes one full run for trig. Concurrent calls are serialised.
func (p *Pipeline) Process(ctx context.Context, trig queue.Trigger) Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs++
	res := Result{Run: p.runs, Trigger: trig}
	log := p.log.With("run", res.Run, "source", trig.Source)
	start := time.Now()
	defer func() {
		res.Total = time.Since(start)
		p.transition(res.Run, Idle)
	}()

	if !trig.At.IsZero() {
		log.Debugw("correction run started", "queued_for", start.Sub(trig.At))
	} else {
		log.Debugw("correction run started")
	}

	res.Reached = p.transition(res.Run, Copying)
	if err := p.opts.Keys.Copy(); err != nil {
		log.Warnw("copy keystroke failed", "error", err)
	}
	settleStart := time.Now()
	if err := sleepCtx(ctx, p.opts.SettleDelay); err != nil {
		res.Err = err
		log.Infow("correction run aborted", "state", res.Reached, "error", err)
		return res
	}
	res.Settle = time.Since(settleStart)

	res.Reached = p.transition(res.Run, Reading)
	text, err := p.opts.Clipboard.Text()
	if err != nil {
		res.Err = err
		log.Warnw("failed to read clipboard", "error", err)
		return res
	}
	log.Debugw("clipboard read", "chars", len([]rune(text)), "preview", logutil.Sanitize(text, 80))

	res.Reached = p.transition(res.Run, Correcting)
	correctStart := time.Now()
	corrected, err := p.opts.Corrector.Correct(ctx, text)
	res.Correct = time.Since(correctStart)
	if err != nil {
		res.Err = err
		log.Warnw("correction failed", "error", err, "elapsed", res.Correct)
		return res
	}
	res.Changed = corrected != text

	res.Reached = p.transition(res.Run, Writing)
	if err := p.opts.Clipboard.SetText(corrected); err != nil {
		res.Err = err
		log.Warnw("failed to write clipboard", "error", err)
		return res
	}

	res.Reached = p.transition(res.Run, Pasting)
	if err := p.opts.Keys.Paste(); err != nil {
		log.Warnw("paste keystroke failed", "error", err)
	}

	log.Infow("correction applied",
		"changed", res.Changed,
		"chars", len([]rune(corrected)),
		"correct_ms", res.Correct.Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (p *Pipeline) transition(run uint64, to State) State {
	from := State(p.state.Swap(int32(to)))
	if p.opts.OnTransition != nil && from != to {
		p.opts.OnTransition(run, from, to)
	}
	return to
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

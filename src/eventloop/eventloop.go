package eventloop

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"grammar-fix/src/hotkey"
	"grammar-fix/src/pipeline"
	"grammar-fix/src/queue"
	"grammar-fix/src/singleinstance"
)

// Loop is the single coordinator: two producers (keyboard hook and
// single-instance server) feed one queue drained by one pipeline consumer.
type Loop struct {
	queue     *queue.Queue
	listener  hotkey.Listener
	newServer func(singleinstance.TriggerFunc) singleinstance.Server
	pipe      *pipeline.Pipeline
	log       *zap.SugaredLogger
}

type Options struct {
	Listener hotkey.Listener
	Pipeline *pipeline.Pipeline
	// NewServer builds the single-instance server; nil disables remote triggers.
	NewServer func(singleinstance.TriggerFunc) singleinstance.Server
	Logger    *zap.SugaredLogger
}

func New(opts Options) (*Loop, error) {
	if opts.Listener == nil {
		return nil, errors.New("eventloop: Listener is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("eventloop: Pipeline is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loop{
		queue:     queue.New(),
		listener:  opts.Listener,
		newServer: opts.NewServer,
		pipe:      opts.Pipeline,
		log:       log,
	}, nil
}

// Enqueue records one trigger and returns the backlog. It never blocks, so
// it is safe to call from the hook callback.
func (l *Loop) Enqueue(source string) int {
	l.queue.Send(queue.Trigger{Source: source})
	return l.queue.Len()
}

// Backlog reports triggers waiting behind the current run.
func (l *Loop) Backlog() int { return l.queue.Len() }

// Run starts both producers and then consumes triggers until ctx is cancelled.
// Startup failures are returned before any trigger is processed.
func (l *Loop) Run(ctx context.Context) error {
	if l.newServer != nil {
		srv := l.newServer(func() (int, error) {
			if ctx.Err() != nil {
				return 0, errors.New("resident is shutting down")
			}
			return l.Enqueue(queue.SourceRemote), nil
		})
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start single-instance server: %w", err)
		}
		defer srv.Close()
		l.log.Infow("resident listening", "port", srv.Port())
	}

	if err := l.listener.Start(ctx, func() {
		n := l.Enqueue(queue.SourceHotkey)
		if n > 1 {
			l.log.Debugw("trigger queued behind active run", "backlog", n)
		}
	}); err != nil {
		return fmt.Errorf("failed to start hotkey listener: %w", err)
	}

	err := l.pipe.Run(ctx, l.queue)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		l.log.Infow("event loop stopped", "runs", l.pipe.Runs(), "pending", l.queue.Len())
		return nil
	}
	return err
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"grammar-fix/src/config"
	"grammar-fix/src/singleinstance"
)

type stressOptions struct {
	n        int
	deadline time.Duration
}

type triggerFunc func(ctx context.Context) (delegated bool, backlog int, err error)

type summary struct {
	launched   int
	queued     int32
	noResident int32
	errs       int32
	maxBacklog int32
	elapsed    time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env may move the port range.
	_, _ = config.Load()
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-trigger",
		Short:         "Fire concurrent triggers at the resident grammar fixer",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := singleinstance.NewClient()
			s := fire(*opts, client.TryTrigger)
			report(cmd.OutOrStdout(), s)
			if s.noResident == int32(s.launched) {
				return fmt.Errorf("no resident answered on ports %s", portRange())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of triggers to send")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-trigger timeout")

	return cmd
}

func fire(opts stressOptions, trigger triggerFunc) summary {
	var wg sync.WaitGroup
	s := summary{launched: opts.n}

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, backlog, err := trigger(ctx)
			switch {
			case err != nil:
				atomic.AddInt32(&s.errs, 1)
			case !delegated:
				atomic.AddInt32(&s.noResident, 1)
			default:
				atomic.AddInt32(&s.queued, 1)
				for {
					cur := atomic.LoadInt32(&s.maxBacklog)
					if int32(backlog) <= cur || atomic.CompareAndSwapInt32(&s.maxBacklog, cur, int32(backlog)) {
						break
					}
				}
			}
		}()
	}
	wg.Wait()
	s.elapsed = time.Since(start)
	return s
}

func report(w io.Writer, s summary) {
	fmt.Fprintf(w, "launched=%d queued=%d no_resident=%d err=%d max_backlog=%d elapsed=%s\n",
		s.launched, s.queued, s.noResident, s.errs, s.maxBacklog, s.elapsed)
}

func portRange() string {
	start, end := singleinstance.PortRange()
	return fmt.Sprintf("%d-%d", start, end)
}

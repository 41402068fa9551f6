package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 50 {
		t.Fatalf("Expected default n=50, got %d", opts.n)
	}
	if opts.deadline != 5*time.Second {
		t.Fatalf("Expected default deadline=5s, got %v", opts.deadline)
	}
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--n", "3", "--deadline", "7s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 3 {
		t.Fatalf("Expected n=3, got %d", opts.n)
	}
	if opts.deadline != 7*time.Second {
		t.Fatalf("Expected deadline=7s, got %v", opts.deadline)
	}
}

func TestFireCountsOutcomes(t *testing.T) {
	var calls int32
	s := fire(stressOptions{n: 30, deadline: time.Second}, func(ctx context.Context) (bool, int, error) {
		n := atomic.AddInt32(&calls, 1)
		switch n % 3 {
		case 0:
			return true, int(n), nil
		case 1:
			return false, 0, nil
		default:
			return true, 0, errors.New("boom")
		}
	})

	if s.queued != 10 || s.noResident != 10 || s.errs != 10 {
		t.Fatalf("Unexpected summary %+v", s)
	}
	if s.maxBacklog != 30 {
		t.Fatalf("Expected max backlog 30, got %d", s.maxBacklog)
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	report(&buf, summary{launched: 2, queued: 2, maxBacklog: 2})
	if !strings.HasPrefix(buf.String(), "launched=2 queued=2 no_resident=0 err=0 max_backlog=2") {
		t.Fatalf("Unexpected report %q", buf.String())
	}
}

package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	residentHost    = "127.0.0.1"
	pingRequest     = "PING\n"
	pongResponse    = "PONG\n"
	triggerRequest  = "TRIGGER\n"
	queuedPrefix    = "QUEUED "
	errorResponse   = "ERROR\n"
	requestDeadline = 3 * time.Second
)

// ErrAlreadyRunning means another resident owns the start port.
var ErrAlreadyRunning = errors.New("another instance is already running")

type Option func(*tcpServer)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *tcpServer) {
		if log != nil {
			s.log = log
		}
	}
}

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	mu        sync.Mutex
	lis       net.Listener
	port      int
	onTrigger TriggerFunc
	log       *zap.SugaredLogger
	wg        sync.WaitGroup
}

func newTcpServer(onTrigger TriggerFunc, opts ...Option) *tcpServer {
	s := &tcpServer{onTrigger: onTrigger, log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds ONLY the start port of the configured range. If occupied, fail.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	start, _ := getPortRange()
	addr := fmt.Sprintf("%s:%d", residentHost, start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Warnw("singleinstance: failed to bind", "addr", addr, "error", err)
		return fmt.Errorf("%w: %v", ErrAlreadyRunning, err)
	}
	s.lis = lis
	s.port = start
	s.log.Infow("singleinstance: listening", "addr", addr)

	s.wg.Add(1)
	go s.acceptLoop(ctx, lis)
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return nil
}

// Port returns the bound port (0 if not started).
func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	defer s.wg.Done()
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			_ = c.Close()
			return
		}
		s.handle(c)
	}
}

// handle answers one request inline. TriggerFunc never blocks, so a slow
// client can hold the loop for at most requestDeadline.
func (s *tcpServer) handle(c net.Conn) {
	defer c.Close()
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(requestDeadline))

	br := bufio.NewReader(c)
	line, _ := br.ReadString('\n')
	bw := bufio.NewWriter(c)
	defer bw.Flush()

	switch line {
	case pingRequest:
		s.log.Debugw("singleinstance: PING -> PONG", "remote", remote)
		_, _ = bw.WriteString(pongResponse)
	case triggerRequest:
		if s.onTrigger == nil {
			_, _ = bw.WriteString(errorResponse + "resident does not accept triggers")
			return
		}
		backlog, err := s.onTrigger()
		if err != nil {
			s.log.Warnw("singleinstance: trigger rejected", "remote", remote, "error", err)
			_, _ = bw.WriteString(errorResponse + err.Error())
			return
		}
		s.log.Infow("singleinstance: trigger queued", "remote", remote, "backlog", backlog)
		_, _ = fmt.Fprintf(bw, "%s%d\n", queuedPrefix, backlog)
	default:
		s.log.Warnw("singleinstance: unknown request", "remote", remote, "request", strings.TrimSpace(line))
		_, _ = bw.WriteString(errorResponse + "unknown request")
	}
}

func (s *tcpServer) Close() error {
	s.mu.Lock()
	lis := s.lis
	s.lis = nil
	s.port = 0
	s.mu.Unlock()

	if lis == nil {
		return nil
	}
	err := lis.Close()
	s.wg.Wait()
	return err
}

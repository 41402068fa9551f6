package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) TryTrigger(ctx context.Context) (bool, int, error) {
	timeout := timeoutFrom(ctx, 2*time.Second)
	port, ok := findResident(ctx, timeout)
	if !ok {
		return false, 0, ctx.Err()
	}
	backlog, err := sendTrigger(net.JoinHostPort(residentHost, strconv.Itoa(port)), timeout)
	return true, backlog, err
}

// DetectResidentPort returns the port of the resident that answers PING, if any.
func DetectResidentPort(ctx context.Context) (int, bool) {
	return findResident(ctx, timeoutFrom(ctx, 300*time.Millisecond))
}

func timeoutFrom(ctx context.Context, def time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return def
}

func findResident(ctx context.Context, timeout time.Duration) (int, bool) {
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if ping(net.JoinHostPort(residentHost, strconv.Itoa(port)), timeout) {
			return port, true
		}
	}
	return 0, false
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := io.WriteString(conn, pingRequest); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}

func sendTrigger(addr string, timeout time.Duration) (int, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(triggerRequest); err != nil {
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return 0, err
	}
	switch {
	case strings.HasPrefix(status, queuedPrefix):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(status, queuedPrefix)))
		if err != nil {
			return 0, fmt.Errorf("malformed response %q", strings.TrimSpace(status))
		}
		return n, nil
	case status == errorResponse:
		msg, _ := io.ReadAll(br)
		return 0, errors.New(string(msg))
	default:
		return 0, fmt.Errorf("unexpected response %q", strings.TrimSpace(status))
	}
}

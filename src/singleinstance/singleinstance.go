package singleinstance

// This file defines the API for resident ownership and trigger delegation.

import (
	"context"
)

// Server owns the loopback TCP endpoint and accepts delegated triggers.
type Server interface {
	// Start binds the first port of the configured range and begins accepting clients.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Close releases ownership and stops accepting clients.
	Close() error
}

// TriggerFunc enqueues one trigger and returns the backlog after enqueueing.
// It must not block.
type TriggerFunc func() (backlog int, err error)

// Client delegates a trigger to a running resident.
type Client interface {
	// TryTrigger scans the port range, performs the PING handshake and sends TRIGGER.
	// If no resident is found, returns delegated=false, err=nil.
	TryTrigger(ctx context.Context) (delegated bool, backlog int, err error)
}

// NewServer returns the TCP implementation. Each TRIGGER request calls onTrigger.
func NewServer(onTrigger TriggerFunc, opts ...Option) Server {
	return newTcpServer(onTrigger, opts...)
}

// NewClient returns the TCP implementation.
func NewClient() Client { return newTcpClient() }

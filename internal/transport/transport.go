// SPDX-License-Identifier: MIT
// Package transport ships engine status (metering, transport state, fault
// counters) to out-of-process consumers such as a UI. Implementations must
// be thread-safe and must never block the caller: a slow consumer drops
// snapshots rather than back-pressuring the publisher.
package transport

import "fmt"

// Transport sends one status snapshot to whoever is listening.
type Transport interface {
	Send(data any) error
	Close() error
}

// Supported transport kinds, selected by the meter.transport config key.
const (
	KindWebSocket = "websocket"
	KindUDP       = "udp"
	KindLog       = "log"
)

// New builds the transport selected by kind. addr is the websocket listen
// address or the UDP target; the log transport ignores it.
func New(kind, addr string) (Transport, error) {
	switch kind {
	case KindWebSocket:
		return NewWebSocketTransport(addr), nil
	case KindUDP:
		return NewUDPTransport(addr)
	case KindLog:
		return NewLoggingTransport(), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q (want %s, %s or %s)",
			kind, KindWebSocket, KindUDP, KindLog)
	}
}

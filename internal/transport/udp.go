// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	applog "opentune/internal/log"
)

// UDPTransport fires status snapshots as JSON datagrams at a fixed target.
// Fire-and-forget: delivery failures are logged and otherwise ignored,
// matching UDP's semantics.
type UDPTransport struct {
	conn   *net.UDPConn
	mu     sync.Mutex
	closed bool
}

// NewUDPTransport dials the target address ("host:port").
func NewUDPTransport(targetAddress string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP target %q: %w", targetAddress, err)
	}
	applog.Infof("transport: UDP status feed to %s", conn.RemoteAddr())
	return &UDPTransport{conn: conn}, nil
}

func (t *UDPTransport) Send(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode status packet: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("UDP transport is closed")
	}
	if _, err := t.conn.Write(payload); err != nil {
		applog.Warnf("transport: UDP send failed: %v", err)
	}
	return nil
}

func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

var _ Transport = (*UDPTransport)(nil)

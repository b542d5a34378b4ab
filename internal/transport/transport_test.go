// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestNewSelectsTransportKind(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	cases := []struct {
		kind string
		addr string
		want string
	}{
		{KindWebSocket, "127.0.0.1:0", "*transport.WebSocketTransport"},
		{KindUDP, listener.LocalAddr().String(), "*transport.UDPTransport"},
		{KindLog, "", "*transport.LoggingTransport"},
	}
	for _, tc := range cases {
		tr, err := New(tc.kind, tc.addr)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", tc.kind, err)
		}
		if got := typeName(tr); got != tc.want {
			t.Errorf("New(%q) built %s, want %s", tc.kind, got, tc.want)
		}
		if err := tr.Close(); err != nil {
			t.Errorf("Close of %q transport failed: %v", tc.kind, err)
		}
	}

	if _, err := New("carrier-pigeon", ""); err == nil {
		t.Error("unknown transport kind accepted")
	}
}

func typeName(v any) string { return fmt.Sprintf("%T", v) }

func TestUDPTransportDeliversJSON(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	tr, err := NewUDPTransport(listener.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	payload := map[string]any{"state": "playing", "position": float64(512)}
	if err := tr.Send(payload); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 4096)
	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := listener.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("no datagram received: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf[:n], &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["state"] != "playing" || got["position"] != float64(512) {
		t.Errorf("payload = %v", got)
	}
}

func TestUDPTransportSendAfterClose(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	tr, err := NewUDPTransport(listener.LocalAddr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Send("x"); err == nil {
		t.Error("Send after Close returned nil")
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestLoggingTransportNeverFails(t *testing.T) {
	tr := NewLoggingTransport()
	if err := tr.Send(struct{ X int }{42}); err != nil {
		t.Errorf("Send returned %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}

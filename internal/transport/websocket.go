// SPDX-License-Identifier: MIT
package transport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	applog "opentune/internal/log"
)

// WebSocketTransport broadcasts status snapshots as JSON to every connected
// websocket client. Snapshots are queued through a buffered channel; when
// the queue is full the snapshot is dropped, never blocking the sender.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan any
	server    *http.Server
}

// NewWebSocketTransport starts a websocket server on addr serving /status.
func NewWebSocketTransport(addr string) *WebSocketTransport {
	wst := &WebSocketTransport{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // local tooling, no origin policy
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan any, 256),
	}
	wst.start()
	return wst
}

func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", wst.handleWebSocket)

	wst.server = &http.Server{Addr: wst.addr, Handler: mux}

	go func() {
		applog.Infof("transport: status feed listening on ws://%s/status", wst.addr)
		if err := wst.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Errorf("transport: server error: %v", err)
		}
	}()

	go wst.handleBroadcasts()
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("transport: upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	applog.Infof("transport: client connected, total: %d", total)

	go func() {
		// Block until the client goes away.
		_, _, err := conn.ReadMessage()
		if err != nil {
			wst.clientsMu.Lock()
			delete(wst.clients, conn)
			total := len(wst.clients)
			wst.clientsMu.Unlock()
			conn.Close()
			applog.Infof("transport: client disconnected, total: %d", total)
		}
	}()
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for data := range wst.broadcast {
		wst.clientsMu.Lock()
		for client := range wst.clients {
			if err := client.WriteJSON(data); err != nil {
				applog.Warnf("transport: send failed, dropping client: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// Send queues data for broadcast; full queue drops the snapshot.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case wst.broadcast <- data:
	default:
	}
	return nil
}

// Close shuts down the server and all client connections.
func (wst *WebSocketTransport) Close() error {
	wst.clientsMu.Lock()
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientsMu.Unlock()

	if wst.server != nil {
		return wst.server.Close()
	}
	return nil
}

var _ Transport = (*WebSocketTransport)(nil)

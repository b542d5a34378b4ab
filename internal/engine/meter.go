// SPDX-License-Identifier: MIT
package engine

import (
	"time"

	"opentune/internal/graph"
	applog "opentune/internal/log"
	"opentune/internal/nodes"
	"opentune/internal/plugin"
	"opentune/internal/transport"
)

// NodeStatus is one node's metering entry in a status frame.
type NodeStatus struct {
	ID            graph.NodeID `json:"id"`
	Name          string       `json:"name"`
	Peak          float64      `json:"peak"`
	RMS           float64      `json:"rms"`
	Faulted       bool         `json:"faulted,omitempty"`
	LatencyFaults uint64       `json:"latencyFaults,omitempty"`
	Spectrum      []float64    `json:"spectrum,omitempty"`
}

// StatusSnapshot is the periodic frame pushed to monitoring transports.
type StatusSnapshot struct {
	Position   int64          `json:"position"`
	State      string         `json:"state"`
	BPM        float64        `json:"bpm"`
	NodeFaults uint64         `json:"nodeFaults"`
	LastFault  *FaultNotice   `json:"lastFault,omitempty"`
	Nodes      []NodeStatus   `json:"nodes"`
}

// Publisher periodically snapshots engine state and pushes it to a
// transport. It runs entirely off the real-time path; the snapshot takes
// the engine lock, so a busy callback only delays the feed, never the
// audio.
type Publisher struct {
	engine   *Engine
	sink     transport.Transport
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewPublisher(e *Engine, sink transport.Transport, interval time.Duration) *Publisher {
	return &Publisher{
		engine:   e,
		sink:     sink,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (p *Publisher) Start() {
	go p.run()
}

func (p *Publisher) run() {
	defer close(p.stopped)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			snap := p.engine.Status()
			if err := p.sink.Send(snap); err != nil {
				applog.Debugf("Status send failed: %v", err)
			}
		}
	}
}

func (p *Publisher) Stop() {
	close(p.done)
	<-p.stopped
}

// Status builds a status frame. Safe to call from any goroutine.
func (e *Engine) Status() StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.snapshot()
	out := StatusSnapshot{
		Position:   int64(snap.Pos),
		State:      snap.State.String(),
		BPM:        snap.BPM,
		NodeFaults: e.sched.NodeFaults(),
		LastFault:  e.sched.LastFault(),
	}
	for _, st := range e.sched.order {
		ns := NodeStatus{
			ID:      st.node.ID(),
			Name:    st.node.Name(),
			Peak:    st.Peak(),
			RMS:     st.RMS(),
			Faulted: st.faulted.Load(),
		}
		if a, ok := st.node.(*plugin.Adapter); ok {
			ns.LatencyFaults = a.LatencyFaults()
		}
		if an, ok := st.node.(*nodes.Analyzer); ok {
			ns.Spectrum = make([]float64, an.Bins())
			an.Magnitudes(ns.Spectrum)
		}
		out.Nodes = append(out.Nodes, ns)
	}
	return out
}

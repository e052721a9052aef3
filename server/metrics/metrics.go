// Package metrics keeps process-wide relay counters and serves them as JSON.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

type Counter struct{ v atomic.Int64 }

func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Add(n int64)  { c.v.Add(n) }
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge holds a value that goes up and down.
type Gauge struct{ v atomic.Int64 }

func (g *Gauge) Inc()         { g.v.Add(1) }
func (g *Gauge) Dec()         { g.v.Add(-1) }
func (g *Gauge) Set(n int64)  { g.v.Store(n) }
func (g *Gauge) Value() int64 { return g.v.Load() }

var (
	SocketsOpen    Gauge
	RoomsOpen      Gauge
	MatchesPaired  Counter
	QueueTimeouts  Counter
	FramesRelayed  Counter
	FramesLimited  Counter
	SlowSocketDrop Counter
)

func Snapshot() map[string]int64 {
	return map[string]int64{
		"sockets_open":           SocketsOpen.Value(),
		"rooms_open":             RoomsOpen.Value(),
		"matches_paired_total":   MatchesPaired.Value(),
		"queue_timeouts_total":   QueueTimeouts.Value(),
		"frames_relayed_total":   FramesRelayed.Value(),
		"frames_limited_total":   FramesLimited.Value(),
		"slow_socket_drop_total": SlowSocketDrop.Value(),
	}
}

func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Snapshot())
	}
}

// Package annotations is the engine's solve tracer: a low-overhead event
// collector that records the three staged-executor timing surfaces
// (tree generation, specialization, execution) and one event per
// semi-naive iteration carrying its iteration number (delta sizes are
// not recorded), adapted from the teacher's query-annotation
// system to recursive-evaluation events instead of single-query ones.
package annotations

import (
	"sync"
	"time"
)

// Event name constants, hierarchically namespaced the way the teacher's
// query/phase/join/aggregation constants are.
const (
	SolveBegin    = "solve/begin"
	SolveComplete = "solve/complete"

	StratumBegin    = "stratum/begin"
	StratumComplete = "stratum/complete"

	IterationBegin    = "iteration/begin"
	IterationComplete = "iteration/complete"

	TreeGenerated  = "staged/tree.generated"
	Specialized    = "staged/specialized"
	StagedExecuted = "staged/executed"

	RuleEvaluated = "rule/evaluated"

	ErrorUnstratifiable = "error/unstratifiable"
	ErrorIterationLimit = "error/iteration.limit"
)

// Event represents a single traced occurrence during a solve.
type Event struct {
	Name    string
	Start   time.Time
	End     time.Time
	Latency time.Duration
	Data    map[string]interface{}
}

// Handler processes events as they occur.
type Handler func(Event)

// Collector accumulates events during one solve. Nil-safe: a Collector
// obtained from a nil *Collector receiver is a no-op, so callers that
// don't want tracing can pass nil throughout without branching.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event

	dataPool []map[string]interface{}
	poolIdx  int
	mu       sync.Mutex
}

// NewCollector creates a collector. A nil handler disables recording
// entirely (Add/AddTiming become no-ops) but GetDataMap/Events remain
// safe to call.
func NewCollector(handler Handler) *Collector {
	const poolSize = 32
	c := &Collector{
		enabled:  handler != nil,
		handler:  handler,
		events:   make([]Event, 0, 64),
		dataPool: make([]map[string]interface{}, poolSize),
	}
	for i := range c.dataPool {
		c.dataPool[i] = make(map[string]interface{}, 8)
	}
	return c
}

func (c *Collector) Add(event Event) {
	if c == nil || !c.enabled {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event whose Latency is computed from start to now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if c == nil || !c.enabled {
		return
	}
	end := time.Now()
	c.Add(Event{Name: name, Start: start, End: end, Latency: end.Sub(start), Data: data})
}

// GetDataMap returns a pooled map for event data, clearing a previously
// used slot for reuse, falling back to a fresh allocation once the pool
// is exhausted.
func (c *Collector) GetDataMap() map[string]interface{} {
	if c == nil {
		return make(map[string]interface{}, 4)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.poolIdx >= len(c.dataPool) {
		return make(map[string]interface{}, 4)
	}
	m := c.dataPool[c.poolIdx]
	c.poolIdx++
	for k := range m {
		delete(m, k)
	}
	return m
}

// Events returns a copy of all collected events.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset clears the collector for reuse across solves.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	c.poolIdx = 0
}

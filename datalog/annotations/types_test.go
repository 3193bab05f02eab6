package annotations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector
	c.Add(Event{Name: SolveBegin})
	assert.Empty(t, c.Events())
}

func TestCollectorRecordsEvents(t *testing.T) {
	var got []Event
	c := NewCollector(func(e Event) { got = append(got, e) })
	c.AddTiming(IterationComplete, time.Now(), c.GetDataMap())
	assert.Len(t, c.Events(), 1)
	assert.Len(t, got, 1)
	assert.Equal(t, IterationComplete, got[0].Name)
}

func TestSolveTraceCountsIterations(t *testing.T) {
	c := NewCollector(func(Event) {})
	for i := 0; i < 3; i++ {
		c.AddTiming(IterationComplete, time.Now(), nil)
	}
	st := NewSolveTrace(c.Events())
	assert.Equal(t, 3, st.Iterations)
}

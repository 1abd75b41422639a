package observability

import (
	"sync"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// Metrics provides basic in-memory counters for the ticket desk: transition
// volume, live SLA state distribution, and aggregation health.
type Metrics struct {
	mu              sync.Mutex
	transitionCount map[string]int64
	slaStateCount   map[domain.SLAState]int64
	aggregations    int64
	degradedViews   int64
	sourceFailures  map[string]int64
	errorCount      map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		transitionCount: make(map[string]int64),
		slaStateCount:   make(map[domain.SLAState]int64),
		sourceFailures:  make(map[string]int64),
		errorCount:      make(map[string]int64),
	}
}

// RecordError counts a request that ended in a domain error.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[path+"|"+method+"|"+code]++
}

// RecordTransition counts a successful lifecycle transition.
func (m *Metrics) RecordTransition(from, to domain.TicketState) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[string(from)+">"+string(to)]++
}

// RecordSLAState counts an evaluator result.
func (m *Metrics) RecordSLAState(state domain.SLAState) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaStateCount[state]++
}

// RecordAggregation counts a detail build and any degraded sources.
func (m *Metrics) RecordAggregation(partialFailures []string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregations++
	if len(partialFailures) > 0 {
		m.degradedViews++
	}
	for _, source := range partialFailures {
		m.sourceFailures[source]++
	}
}

// Snapshot returns a copy of the counters for health/debug endpoints.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{
		"aggregations":   m.aggregations,
		"degraded_views": m.degradedViews,
	}
	for key, count := range m.transitionCount {
		out["transition:"+key] = count
	}
	for state, count := range m.slaStateCount {
		out["sla:"+string(state)] = count
	}
	for source, count := range m.sourceFailures {
		out["source_failure:"+source] = count
	}
	for key, count := range m.errorCount {
		out["error:"+key] = count
	}
	return out
}

package bench

import (
	"math"
	"slices"
	"sort"
	"sync"
	"time"
)

// Operation names recorded by the runner
const (
	OpConnect = "connect"
	OpSearch  = "search_files"
)

// Stats collects per-operation results from concurrent users.
type Stats struct {
	mu  sync.Mutex
	ops map[string]*opStats
}

type opStats struct {
	durations     []time.Duration
	failures      int
	responseBytes int64
	errors        map[string]int // error message -> count
}

// NewStats creates an empty collector
func NewStats() *Stats {
	return &Stats{ops: make(map[string]*opStats)}
}

// Record adds one completed request. A non-nil err marks it as failed.
func (s *Stats) Record(op string, d time.Duration, responseBytes int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.ops[op]
	if !ok {
		st = &opStats{errors: make(map[string]int)}
		s.ops[op] = st
	}

	st.durations = append(st.durations, d)
	st.responseBytes += int64(responseBytes)
	if err != nil {
		st.failures++
		st.errors[err.Error()]++
	}
}

// Snapshot summarizes everything recorded so far. elapsed is used for the
// request rate and may be zero.
func (s *Stats) Snapshot(elapsed time.Duration) []OpReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports := make([]OpReport, 0, len(s.ops))
	for name, st := range s.ops {
		reports = append(reports, st.summarize(name, elapsed))
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Name < reports[j].Name
	})
	return reports
}

func (st *opStats) summarize(name string, elapsed time.Duration) OpReport {
	r := OpReport{
		Name:          name,
		Requests:      len(st.durations),
		Failures:      st.failures,
		ResponseBytes: st.responseBytes,
	}
	if len(st.errors) > 0 {
		r.Errors = make(map[string]int, len(st.errors))
		for msg, n := range st.errors {
			r.Errors[msg] = n
		}
	}
	if elapsed > 0 {
		r.RPS = float64(r.Requests) / elapsed.Seconds()
	}
	if len(st.durations) == 0 {
		return r
	}

	sorted := slices.Clone(st.durations)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	r.MinMs = millis(sorted[0])
	r.MaxMs = millis(sorted[len(sorted)-1])
	r.AvgMs = millis(total) / float64(len(sorted))
	r.P50Ms = millis(percentile(sorted, 0.50))
	r.P90Ms = millis(percentile(sorted, 0.90))
	r.P99Ms = millis(percentile(sorted, 0.99))
	return r
}

// percentile uses the nearest-rank method on a sorted, non-empty slice
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

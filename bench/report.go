package bench

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
)

// json is a drop-in replacement for encoding/json with better performance
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report is the result of one load test run
type Report struct {
	Server         string     `json:"server"`
	StartedAt      time.Time  `json:"started_at"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	Users          int        `json:"users"`
	Operations     []OpReport `json:"operations"`
}

// OpReport summarizes one operation across all users. Latencies cover failed
// requests too.
type OpReport struct {
	Name          string         `json:"name"`
	Requests      int            `json:"requests"`
	Failures      int            `json:"failures"`
	ResponseBytes int64          `json:"response_bytes"`
	RPS           float64        `json:"requests_per_second"`
	MinMs         float64        `json:"min_ms"`
	AvgMs         float64        `json:"avg_ms"`
	MaxMs         float64        `json:"max_ms"`
	P50Ms         float64        `json:"p50_ms"`
	P90Ms         float64        `json:"p90_ms"`
	P99Ms         float64        `json:"p99_ms"`
	Errors        map[string]int `json:"errors,omitempty"`
}

// Operation returns the summary for name, or false if it was never recorded.
func (r *Report) Operation(name string) (OpReport, bool) {
	for _, op := range r.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return OpReport{}, false
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Log writes a one-line summary per operation.
func (r *Report) Log(logger zerolog.Logger) {
	for _, op := range r.Operations {
		ev := logger.Info()
		if op.Failures > 0 {
			ev = logger.Warn()
		}
		ev.Str("op", op.Name).
			Int("requests", op.Requests).
			Int("failures", op.Failures).
			Float64("rps", op.RPS).
			Float64("avg_ms", op.AvgMs).
			Float64("p50_ms", op.P50Ms).
			Float64("p90_ms", op.P90Ms).
			Float64("p99_ms", op.P99Ms).
			Float64("max_ms", op.MaxMs).
			Msg("operation summary")
	}
}

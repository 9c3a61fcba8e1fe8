// Package bench replays the search protocol with many concurrent users and
// records per-operation latency and failures.
package bench

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/Mmx233/FSearch/client"
	"github.com/Mmx233/FSearch/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Runner drives one load test. Every simulated user owns its own session;
// users share nothing but the stats collector.
type Runner struct {
	config *config.Bench
	stats  *Stats
	logger zerolog.Logger
}

// New creates a runner for the given configuration
func New(conf *config.Bench) *Runner {
	conf.ApplyDefaults()

	return &Runner{
		config: conf,
		stats:  NewStats(),
		logger: log.With().Str("com", "bench").Logger(),
	}
}

// Run spawns the configured users and blocks until they all finish or the
// run duration elapses.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	r.logger.Info().
		Str("server", r.config.Client.Server).
		Int("users", r.config.Users).
		Float64("spawn_rate", r.config.SpawnRate).
		Dur("duration", r.config.Duration).
		Int("iterations", r.config.Iterations).
		Msg("starting load test")

	var interval time.Duration
	if r.config.SpawnRate > 0 {
		interval = time.Duration(float64(time.Second) / r.config.SpawnRate)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

spawn:
	for i := 0; i < r.config.Users; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-gctx.Done():
				break spawn
			case <-time.After(interval):
			}
		}
		g.Go(func() error {
			r.runUser(gctx)
			return nil
		})
	}

	err := g.Wait()
	elapsed := time.Since(start)

	report := &Report{
		Server:         r.config.Client.Server,
		StartedAt:      start,
		ElapsedSeconds: elapsed.Seconds(),
		Users:          r.config.Users,
		Operations:     r.stats.Snapshot(elapsed),
	}
	r.logger.Info().Dur("elapsed", elapsed).Msg("load test finished")
	return report, err
}

// runUser is one simulated user: connect, search until done, disconnect.
// A failed request ends the user since its session is closed by then.
func (r *Runner) runUser(ctx context.Context) {
	conf := r.config.Client
	s := client.New(&conf, r.logger)
	logger := r.logger.With().Str("session_id", s.ID()).Logger()

	start := time.Now()
	if err := s.Connect(ctx); err != nil {
		if !runEnded(ctx) {
			r.stats.Record(OpConnect, time.Since(start), 0, err)
			logger.Debug().Err(err).Msg("connect failed")
		}
		return
	}
	r.stats.Record(OpConnect, time.Since(start), len(s.Ack()), nil)
	defer s.Disconnect()

	keywords := r.config.Keywords
	for i := 0; r.config.Iterations == 0 || i < r.config.Iterations; i++ {
		if ctx.Err() != nil {
			return
		}

		keyword := keywords[rand.IntN(len(keywords))]
		start := time.Now()
		result, err := s.Search(ctx, keyword)
		if err != nil {
			// a request cut short by the end of the run is not a failure
			if !runEnded(ctx) {
				r.stats.Record(OpSearch, time.Since(start), 0, err)
				logger.Debug().Err(err).Str("keyword", keyword).Msg("search failed")
			}
			return
		}
		r.stats.Record(OpSearch, time.Since(start), len(result), nil)

		if r.config.ThinkTime > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.config.ThinkTime):
			}
		}
	}
}

// runEnded reports whether the run is over. The socket deadline and the
// context deadline are the same instant, so I/O may time out a moment before
// the context reports it.
func runEnded(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	d, ok := ctx.Deadline()
	return ok && !time.Now().Before(d)
}

package config

import (
	"fmt"
	"strings"
	"time"
)

type Bench struct {
	Client     Client        `yaml:"client"`
	Users      int           `yaml:"users"`      // Concurrent simulated users, default 10
	SpawnRate  float64       `yaml:"spawn_rate"` // Users started per second, 0 starts all at once
	Duration   time.Duration `yaml:"duration"`   // Run length, default 30s
	Iterations int           `yaml:"iterations"` // Searches per user, 0 searches until Duration ends
	Keywords   []string      `yaml:"keywords"`   // Search words picked at random
	ThinkTime  time.Duration `yaml:"think_time"` // Pause between searches of one user
	Report     string        `yaml:"report"`     // JSON report path, empty writes to stdout
}

// ApplyDefaults fills zero-value fields with their defaults.
func (b *Bench) ApplyDefaults() {
	b.Client.ApplyDefaults()
	if b.Users <= 0 {
		b.Users = DefaultBenchUsers
	}
	if b.Duration <= 0 {
		b.Duration = DefaultBenchDuration
	}
	if len(b.Keywords) == 0 {
		b.Keywords = append([]string(nil), DefaultKeywords...)
	}
}

// Validate checks the load test configuration.
func (b *Bench) Validate() error {
	if err := b.Client.Validate(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if b.Users < 1 {
		return fmt.Errorf("users must be at least 1, got %d", b.Users)
	}
	if b.SpawnRate < 0 {
		return fmt.Errorf("spawn_rate cannot be negative, got %v", b.SpawnRate)
	}
	if b.Iterations < 0 {
		return fmt.Errorf("iterations cannot be negative, got %d", b.Iterations)
	}
	if len(b.Keywords) == 0 {
		return fmt.Errorf("at least one keyword must be provided")
	}
	for i, kw := range b.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("keywords[%d] cannot be empty", i)
		}
	}
	return nil
}

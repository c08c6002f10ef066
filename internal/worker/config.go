// Package worker drives heatmap job processing: claiming pending jobs,
// computing them chunk by chunk, and reclaiming jobs from dead workers.
package worker

import (
	"os"
	"strconv"
	"time"
)

// Config holds worker loop configuration.
type Config struct {
	// MaxConcurrentJobs is how many jobs one worker drives in parallel.
	// Default: 2
	MaxConcurrentJobs int

	// PollInterval is the pause between job queue polls.
	// Default: 10 seconds
	PollInterval time.Duration

	// StaleThreshold is how long a running job may go without progress
	// before it is reclaimed for another worker.
	// Default: 10 minutes
	StaleThreshold time.Duration

	// ChunkSize is the number of grid cells computed between progress
	// checkpoints.
	// Default: 500
	ChunkSize int

	// JobTimeBudget bounds how long one claimed job is driven before the
	// worker yields back to the poll loop. Keeping it under StaleThreshold
	// guarantees a live worker's job is never reclaimed mid-run.
	// Default: 8 minutes
	JobTimeBudget time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 2,
		PollInterval:      10 * time.Second,
		StaleThreshold:    10 * time.Minute,
		ChunkSize:         500,
		JobTimeBudget:     8 * time.Minute,
	}
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	defaults := DefaultConfig()

	maxJobs, _ := strconv.Atoi(getEnvOrDefault("MAX_CONCURRENT_JOBS", strconv.Itoa(defaults.MaxConcurrentJobs)))
	poll, _ := time.ParseDuration(getEnvOrDefault("JOB_POLL_INTERVAL", defaults.PollInterval.String()))
	stale, _ := time.ParseDuration(getEnvOrDefault("JOB_STALE_THRESHOLD", defaults.StaleThreshold.String()))
	chunk, _ := strconv.Atoi(getEnvOrDefault("JOB_CHUNK_SIZE", strconv.Itoa(defaults.ChunkSize)))
	budget, _ := time.ParseDuration(getEnvOrDefault("JOB_TIME_BUDGET", defaults.JobTimeBudget.String()))

	cfg := Config{
		MaxConcurrentJobs: maxJobs,
		PollInterval:      poll,
		StaleThreshold:    stale,
		ChunkSize:         chunk,
		JobTimeBudget:     budget,
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = defaults.MaxConcurrentJobs
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = defaults.StaleThreshold
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaults.ChunkSize
	}
	if c.JobTimeBudget <= 0 {
		c.JobTimeBudget = defaults.JobTimeBudget
	}
	// The budget must stay under the stale threshold so a live worker's job
	// is never reclaimed from under it.
	if c.JobTimeBudget >= c.StaleThreshold {
		c.JobTimeBudget = c.StaleThreshold * 8 / 10
	}
	return c
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// internal/workers/consultation/run-consultation/config.go
package runconsultation

import "time"

type Config struct {
	// Timeout is the whole-job budget: both query rounds plus synthesis.
	Timeout       time.Duration
	MaxJobsActive int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       120 * time.Second,
		MaxJobsActive: 5,
	}
}

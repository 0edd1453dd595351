package main

import (
	"errors"
	"flag"
	"time"
)

const (
	defaultRate        = 50
	defaultResources   = 200
	defaultHolders     = 1000
	defaultCapacityMax = 3
	defaultDuration    = time.Minute
	defaultWorkers     = 16
)

var ErrInvalidRate = errors.New("rate must be positive")
var ErrInvalidPopulation = errors.New("resources and holders must be positive")
var ErrInvalidCapacityMax = errors.New("capacity-max must be at least 1")
var ErrInvalidDuration = errors.New("duration must be positive")
var ErrInvalidWorkers = errors.New("workers must be positive")
var ErrInvalidProbability = errors.New("error probabilities must be within [0, 100]")

// Config holds all simulation configuration parameters.
type Config struct {
	Rate                 int
	Resources            int
	Holders              int
	CapacityMax          int
	Duration             time.Duration
	Workers              int
	ObservabilityEnabled bool
	EnvFile              string
	ErrorProbabilities   ErrorConfig
}

// ErrorConfig holds probabilities for intentional error scenarios (as percentages 0-100).
type ErrorConfig struct {
	ForeignHolder float64 // close or extend a reservation held by somebody else
	ClosedAgain   float64 // close a reservation that was already closed
}

// parseFlags parses command line flags and returns configuration.
func parseFlags(args []string) (Config, error) {
	flags := flag.NewFlagSet("simulation", flag.ContinueOnError)

	var (
		rate          = flags.Int("rate", defaultRate, "Requests per second")
		resources     = flags.Int("resources", defaultResources, "Number of reservable resources")
		holders       = flags.Int("holders", defaultHolders, "Number of distinct holders")
		capacityMax   = flags.Int("capacity-max", defaultCapacityMax, "Maximum capacity of one resource, capacities are drawn from 1..max")
		duration      = flags.Duration("duration", defaultDuration, "How long the main simulation phase runs")
		workers       = flags.Int("workers", defaultWorkers, "Number of concurrent workers")
		observability = flags.Bool("observability-enabled", false, "Enable OpenTelemetry observability")
		envFile       = flags.String("env-file", ".env", "Optional .env file with RESERVATION_* settings")
		foreignHolder = flags.Float64("foreign-holder-rate", 1.0, "Percentage of close/extend requests sent by a foreign holder")
		closedAgain   = flags.Float64("closed-again-rate", 1.0, "Percentage of close requests repeated on an already closed reservation")
	)

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Rate:                 *rate,
		Resources:            *resources,
		Holders:              *holders,
		CapacityMax:          *capacityMax,
		Duration:             *duration,
		Workers:              *workers,
		ObservabilityEnabled: *observability,
		EnvFile:              *envFile,
		ErrorProbabilities: ErrorConfig{
			ForeignHolder: *foreignHolder,
			ClosedAgain:   *closedAgain,
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks the ranges of all parameters.
func (c Config) Validate() error {
	switch {
	case c.Rate <= 0:
		return ErrInvalidRate
	case c.Resources <= 0 || c.Holders <= 0:
		return ErrInvalidPopulation
	case c.CapacityMax < 1:
		return ErrInvalidCapacityMax
	case c.Duration <= 0:
		return ErrInvalidDuration
	case c.Workers <= 0:
		return ErrInvalidWorkers
	case outOfPercentRange(c.ErrorProbabilities.ForeignHolder), outOfPercentRange(c.ErrorProbabilities.ClosedAgain):
		return ErrInvalidProbability
	}

	return nil
}

func outOfPercentRange(p float64) bool {
	return p < 0 || p > 100
}

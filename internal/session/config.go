package session

import (
	"time"

	"github.com/danmuck/covertfs/internal/protocol"
	"github.com/danmuck/covertfs/internal/retry"
)

// Config defines polling and join behavior for one session.
type Config struct {
	// PollInterval paces signal polling during transfers.
	PollInterval time.Duration
	// ConnectPollInterval paces the passive side waiting for a join.
	ConnectPollInterval time.Duration
	// MaxMineIterations caps the padding search for derived bytes; 0 is unbounded.
	MaxMineIterations int
	Pad               byte
	// JoinBackoff and JoinAttempts bound compare-and-swap retries in Connect.
	JoinBackoff  retry.BackoffConfig
	JoinAttempts int
}

func DefaultConfig() Config {
	return Config{
		PollInterval:        time.Second / 60,
		ConnectPollInterval: 100 * time.Millisecond,
		MaxMineIterations:   protocol.DefaultMiner().MaxIterations,
		Pad:                 protocol.DefaultPad,
		JoinBackoff: retry.BackoffConfig{
			InitialDelay: 20 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     time.Second,
			Jitter:       true,
		},
		JoinAttempts: 16,
	}
}

// Miner is the padding search used for the session count and content signals.
func (c Config) Miner() protocol.Miner {
	return protocol.Miner{Pad: c.Pad, MaxIterations: c.MaxMineIterations}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.ConnectPollInterval <= 0 {
		c.ConnectPollInterval = def.ConnectPollInterval
	}
	if c.MaxMineIterations < 0 {
		c.MaxMineIterations = 0
	}
	if c.JoinAttempts <= 0 {
		c.JoinAttempts = def.JoinAttempts
	}
	return c
}

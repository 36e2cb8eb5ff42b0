package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/covertfs/internal/encoding"
	"github.com/danmuck/covertfs/internal/session"
)

// Structured-field shape when the profile leaves it unset. Filesystem
// attributes hold larger values than cloud file properties.
const (
	LocalFSFieldSize  = 256
	LocalFSFieldCount = 10
)

// SessionConfig converts the profile's timing section.
func (p Profile) SessionConfig() (session.Config, error) {
	cfg := session.DefaultConfig()
	if raw := strings.TrimSpace(p.Session.PollInterval); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return session.Config{}, fmt.Errorf("%w: poll_interval %q", ErrInvalid, raw)
		}
		cfg.PollInterval = d
	}
	if raw := strings.TrimSpace(p.Session.ConnectPollInterval); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return session.Config{}, fmt.Errorf("%w: connect_poll_interval %q", ErrInvalid, raw)
		}
		cfg.ConnectPollInterval = d
	}
	if p.Session.MaxMineIterations != nil {
		cfg.MaxMineIterations = *p.Session.MaxMineIterations
	}
	if p.Session.JoinAttempts > 0 {
		cfg.JoinAttempts = p.Session.JoinAttempts
	}
	return cfg, nil
}

// BuildEncoding returns the capacity encoding named by the profile.
func (p Profile) BuildEncoding() (encoding.Encoding, error) {
	kind, err := encoding.ParseKind(p.Encoding.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch kind {
	case encoding.KindDerivedByte:
		cfg, err := p.SessionConfig()
		if err != nil {
			return nil, err
		}
		return encoding.NewDerivedByte(cfg.Miner()), nil
	default:
		size, count := encoding.DefaultFieldSize, encoding.DefaultFieldCount
		if p.Medium.Kind == MediumLocalFS {
			size, count = LocalFSFieldSize, LocalFSFieldCount
		}
		if p.Encoding.FieldSize > 0 {
			size = p.Encoding.FieldSize
		}
		if p.Encoding.FieldCount > 0 {
			count = p.Encoding.FieldCount
		}
		return encoding.NewStructuredField(size, count), nil
	}
}

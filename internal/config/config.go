// Package config loads the channel profile: the medium, encoding, and timing
// settings both endpoints of a channel must agree on.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalid = errors.New("config: invalid profile")

const (
	MediumLocalFS = "localfs"
	MediumRedis   = "redis"
	MediumMongo   = "mongo"
	MediumDrive   = "drive"
)

type Profile struct {
	Medium   MediumConfig   `toml:"medium"`
	Encoding EncodingConfig `toml:"encoding"`
	Session  SessionConfig  `toml:"session"`
}

type MediumConfig struct {
	Kind string `toml:"kind"`

	// localfs
	Root  string `toml:"root"`
	Watch bool   `toml:"watch"`

	// redis
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	Namespace string `toml:"namespace"`

	// mongo
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`

	// drive
	Credentials string `toml:"credentials"`
	Folder      string `toml:"folder"`
}

type EncodingConfig struct {
	Kind       string `toml:"kind"`
	FieldSize  int    `toml:"field_size"`
	FieldCount int    `toml:"field_count"`
}

type SessionConfig struct {
	PollInterval        string `toml:"poll_interval"`
	ConnectPollInterval string `toml:"connect_poll_interval"`
	MaxMineIterations   *int   `toml:"max_mine_iterations"`
	JoinAttempts        int    `toml:"join_attempts"`
}

func LoadProfile(path string) (Profile, error) {
	var p Profile
	if err := loadToml(path, &p); err != nil {
		return Profile{}, err
	}
	p.applyDefaults()
	if err := ValidateProfile(p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func (p *Profile) applyDefaults() {
	p.Medium.Kind = strings.ToLower(strings.TrimSpace(p.Medium.Kind))
	p.Encoding.Kind = strings.ToLower(strings.TrimSpace(p.Encoding.Kind))
	if p.Encoding.Kind == "" {
		p.Encoding.Kind = "structured"
	}
	switch p.Medium.Kind {
	case MediumRedis:
		if p.Medium.Addr == "" {
			p.Medium.Addr = "127.0.0.1:6379"
		}
		if p.Medium.Namespace == "" {
			p.Medium.Namespace = "covertfs"
		}
	case MediumMongo:
		if p.Medium.Database == "" {
			p.Medium.Database = "covertfs"
		}
		if p.Medium.Collection == "" {
			p.Medium.Collection = "objects"
		}
	}
}

func ValidateProfile(p Profile) error {
	switch p.Medium.Kind {
	case MediumLocalFS:
		if strings.TrimSpace(p.Medium.Root) == "" {
			return fmt.Errorf("%w: localfs medium missing root", ErrInvalid)
		}
	case MediumRedis:
		if strings.TrimSpace(p.Medium.Addr) == "" {
			return fmt.Errorf("%w: redis medium missing addr", ErrInvalid)
		}
	case MediumMongo:
		if strings.TrimSpace(p.Medium.URI) == "" {
			return fmt.Errorf("%w: mongo medium missing uri", ErrInvalid)
		}
	case MediumDrive:
		if strings.TrimSpace(p.Medium.Credentials) == "" || strings.TrimSpace(p.Medium.Folder) == "" {
			return fmt.Errorf("%w: drive medium needs credentials and folder", ErrInvalid)
		}
	case "":
		return fmt.Errorf("%w: medium kind is required", ErrInvalid)
	default:
		return fmt.Errorf("%w: unknown medium kind %q", ErrInvalid, p.Medium.Kind)
	}
	if p.Encoding.FieldSize < 0 || p.Encoding.FieldCount < 0 {
		return fmt.Errorf("%w: field_size and field_count must not be negative", ErrInvalid)
	}
	if p.Session.JoinAttempts < 0 {
		return fmt.Errorf("%w: join_attempts must not be negative", ErrInvalid)
	}
	if p.Session.MaxMineIterations != nil && *p.Session.MaxMineIterations < 0 {
		return fmt.Errorf("%w: max_mine_iterations must not be negative", ErrInvalid)
	}
	if _, err := p.SessionConfig(); err != nil {
		return err
	}
	if _, err := p.BuildEncoding(); err != nil {
		return err
	}
	return nil
}

package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "COVERT_LOG_LEVEL"
	EnvLogTimestamp = "COVERT_LOG_TIMESTAMP"
	EnvLogNoColor   = "COVERT_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved process-wide logger setup. Output is always a
// console writer; stdout is reserved for relayed channel data.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	Output    io.Writer
}

var (
	configureOnce sync.Once

	levelAliases = map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"none":     zerolog.Disabled,
		"disabled": zerolog.Disabled,
	}
)

// LevelNames lists the canonical names accepted by ParseLevel, most verbose first.
var LevelNames = []string{"trace", "debug", "info", "warn", "error", "off"}

func ConfigureRuntime() { Configure(ProfileRuntime) }

func ConfigureTests() { Configure(ProfileTest) }

// Configure installs the global logger once per process.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := profileDefaults(profile)
		overrideFromEnv(&cfg, os.Getenv)
		install(cfg)
	})
}

// SetLevel overrides the global level after Configure, e.g. from a config file.
func SetLevel(raw string) bool {
	lvl, ok := ParseLevel(raw)
	if ok {
		zerolog.SetGlobalLevel(lvl)
	}
	return ok
}

// ParseLevel maps a user-facing level name to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	lvl, ok := levelAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return zerolog.InfoLevel, false
	}
	return lvl, true
}

func install(cfg Config) {
	zerolog.SetGlobalLevel(cfg.Level)
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	builder := zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}).With()
	if cfg.Timestamp {
		builder = builder.Timestamp()
	}
	log.Logger = builder.Logger()
}

func profileDefaults(profile Profile) Config {
	if profile == ProfileTest {
		return Config{Level: zerolog.DebugLevel, NoColor: true}
	}
	return Config{Level: zerolog.InfoLevel, Timestamp: true}
}

func overrideFromEnv(cfg *Config, getenv func(string) string) {
	if lvl, ok := ParseLevel(getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	flags := map[string]*bool{
		EnvLogTimestamp: &cfg.Timestamp,
		EnvLogNoColor:   &cfg.NoColor,
	}
	for key, dst := range flags {
		if v, err := strconv.ParseBool(strings.TrimSpace(getenv(key))); err == nil {
			*dst = v
		}
	}
}

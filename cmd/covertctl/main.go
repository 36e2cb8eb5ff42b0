package main

import (
	"context"
	"errors"
	"io/fs"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danmuck/covertfs/internal/config"
	"github.com/danmuck/covertfs/internal/logging"
	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/observability"
	"github.com/danmuck/covertfs/internal/session"
	"github.com/danmuck/covertfs/internal/status"
	"github.com/docopt/docopt-go"
	"github.com/rs/zerolog"
)

const usage = `covertctl: byte channel over shared storage objects.

Usage:
  covertctl connect [options]
  covertctl listen [options]
  covertctl setup [--objects=<n>] [options]
  covertctl clear [options]
  covertctl reset [options]
  covertctl inspect [options]
  covertctl init <kind> <path> [--force]
  covertctl -h | --help

Commands:
  connect   join as the active side and relay stdin/stdout, sending first
  listen    wait for a peer to connect and relay, receiving first
  setup     create filler objects on a medium that supports it
  clear     remove every field from every object
  reset     set the session count back to zero
  inspect   print every object's size, derived byte, and field count
  init      write a config template (<kind> is profile or covertctl)

Options:
  -h --help              Show this screen.
  -c --config=<path>     covertctl config file [default: covertctl.toml]
  -p --profile=<path>    channel profile; overrides the config file
  --log-level=<level>    trace|debug|info|warn|error|disabled
  --status-addr=<addr>   serve /health, /ready, /metrics, /session
  --objects=<n>          filler objects to create [default: 260]
  --force                overwrite an existing file
`

type Opts struct {
	Connect    bool
	Listen     bool
	Setup      bool
	Clear      bool
	Reset      bool
	Inspect    bool
	Init       bool
	Kind       string `docopt:"<kind>"`
	Path       string `docopt:"<path>"`
	Help       bool   `docopt:"--help"`
	Config     string `docopt:"--config"`
	Profile    string `docopt:"--profile"`
	LogLevel   string `docopt:"--log-level"`
	StatusAddr string `docopt:"--status-addr"`
	Objects    string `docopt:"--objects"`
	Force      bool   `docopt:"--force"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	parser := &docopt.Parser{HelpHandler: docopt.PrintHelpAndExit, OptionsFirst: false}
	o, err := parser.ParseArgs(usage, argv, "")
	if err != nil {
		return 2
	}
	var opts Opts
	if err := o.Bind(&opts); err != nil {
		os.Stderr.WriteString("covertctl: " + err.Error() + "\n")
		return 2
	}

	logger := observability.InitLogger("covertctl")

	if opts.Init {
		if err := config.WriteTemplate(opts.Path, opts.Kind, opts.Force); err != nil {
			logger.Error().Err(err).Msg("init failed")
			return 1
		}
		logger.Info().Str("kind", opts.Kind).Str("path", opts.Path).Msg("config template written")
		return 0
	}

	svc, err := resolveServiceConfig(opts)
	if err != nil {
		logger.Error().Err(err).Msg("config failed")
		return 1
	}
	if svc.LogLevel != "" && !logging.SetLevel(svc.LogLevel) {
		logger.Warn().Str("level", svc.LogLevel).Strs("known", logging.LevelNames).Msg("unknown log level ignored")
	}
	logger = logger.With().Str("node", svc.Name).Logger()

	profile, err := config.LoadProfile(svc.ProfilePath)
	if err != nil {
		logger.Error().Err(err).Str("profile", svc.ProfilePath).Msg("profile failed")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, closeMedium, err := openMedium(ctx, profile)
	if err != nil {
		logger.Error().Err(err).Str("medium", profile.Medium.Kind).Msg("open medium failed")
		return 1
	}
	defer func() {
		if err := closeMedium(); err != nil {
			logger.Warn().Err(err).Msg("close medium failed")
		}
	}()

	if err := dispatch(ctx, logger, opts, svc, profile, m); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("interrupted")
			return 130
		}
		logger.Error().Err(err).Msg("covertctl failed")
		return 1
	}
	return 0
}

func resolveServiceConfig(opts Opts) (serviceConfig, error) {
	svc := defaultServiceConfig()
	loaded, err := loadServiceConfig(opts.Config)
	switch {
	case err == nil:
		svc = loaded
	case errors.Is(err, fs.ErrNotExist):
		// flags alone are enough
	default:
		return serviceConfig{}, err
	}
	if opts.Profile != "" {
		svc.ProfilePath = opts.Profile
	}
	if opts.LogLevel != "" {
		svc.LogLevel = opts.LogLevel
	}
	if opts.StatusAddr != "" {
		svc.StatusAddr = opts.StatusAddr
	}
	return svc, nil
}

func dispatch(ctx context.Context, logger zerolog.Logger, opts Opts, svc serviceConfig, profile config.Profile, m medium.Medium) error {
	switch {
	case opts.Setup:
		n, err := strconv.Atoi(opts.Objects)
		if err != nil || n <= 0 {
			return errors.New("--objects must be a positive integer")
		}
		created, err := provision(ctx, m, n, rand.New(rand.NewSource(time.Now().UnixNano())))
		if err != nil {
			return err
		}
		logger.Info().Int("created", created).Int("requested", n).Msg("setup complete")
		return nil
	case opts.Clear:
		n, err := medium.ClearFields(ctx, m)
		if err != nil {
			return err
		}
		logger.Info().Int("objects", n).Msg("fields cleared")
		return nil
	case opts.Inspect:
		return inspect(ctx, m, os.Stdout)
	}

	conn, err := newConn(ctx, m, profile)
	if err != nil {
		return err
	}
	if opts.Reset {
		return conn.Reset(ctx)
	}

	if svc.StatusAddr != "" {
		srv := status.New(svc.Name, conn, svc.CorsOrigins)
		go func() {
			if err := srv.Run(ctx, svc.StatusAddr); err != nil {
				logger.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	active := opts.Connect
	if active {
		_, err = conn.Connect(ctx)
	} else {
		_, err = conn.WaitForConnection(ctx)
	}
	if err != nil {
		return err
	}
	return relay(ctx, logger, conn, active, os.Stdin, os.Stdout)
}

func newConn(ctx context.Context, m medium.Medium, profile config.Profile) (*session.Conn, error) {
	enc, err := profile.BuildEncoding()
	if err != nil {
		return nil, err
	}
	cfg, err := profile.SessionConfig()
	if err != nil {
		return nil, err
	}
	return session.New(ctx, m, enc, session.WithConfig(cfg))
}

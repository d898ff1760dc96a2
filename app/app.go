// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package app assembles a running LED matrix board from its configuration.
//
// It is shared by the LED matrix commands: it builds the logger, opens the
// strip backend with its optional capture and preview taps, starts the board,
// and serves metrics over HTTP.
package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danjacques/goledstrip/board"
	"github.com/danjacques/goledstrip/capture"
	"github.com/danjacques/goledstrip/channel"
	"github.com/danjacques/goledstrip/channel/sim"
	"github.com/danjacques/goledstrip/channel/spiline"
	"github.com/danjacques/goledstrip/config"
	"github.com/danjacques/goledstrip/matrix"
	"github.com/danjacques/goledstrip/preview"
	"github.com/danjacques/goledstrip/strip"
	"github.com/danjacques/goledstrip/support/network"
	"github.com/danjacques/goledstrip/timing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// NewLogger returns a text logger writing to w at level.
func NewLogger(w io.Writer, level logrus.Level) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(w)
	log.Formatter = &logrus.TextFormatter{
		TimestampFormat:  "2006-01-02 15:04:05.0000",
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	}
	log.SetLevel(level)
	return logrus.NewEntry(log)
}

// Env is a running LED matrix board.
type Env struct {
	Config *config.Config
	Logger *logrus.Entry

	// System is the started board.
	System *board.System
	// Matrix is the board's display.
	Matrix *matrix.Matrix
	// Registry holds the board's metrics.
	Registry *prometheus.Registry

	// Preview is the live preview hub, or nil if the preview is disabled.
	Preview *preview.Hub
	// Sim is the simulated backend, or nil if the SPI backend is in use.
	Sim *sim.Opener

	listener net.Listener
	server   *http.Server

	// bg runs the HTTP server and network watcher until bgCtx is cancelled.
	bg       errgroup.Group
	bgCtx    context.Context
	cancelFn context.CancelFunc
}

// Setup builds and starts the board described by cfg.
//
// On failure, everything acquired so far is released.
func Setup(ctx context.Context, cfg *config.Config, logger *logrus.Entry) (env *Env, err error) {
	e := Env{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	e.bgCtx, e.cancelFn = context.WithCancel(context.Background())
	defer func() {
		if env == nil {
			_ = e.shutdown()
		}
	}()

	e.Registry.MustRegister(prometheus.NewGoCollector())
	channel.RegisterMonitoring(e.Registry)
	strip.RegisterMonitoring(e.Registry)

	profile, err := cfg.StripProfile()
	if err != nil {
		return nil, err
	}
	res := cfg.Display.Resolution()

	var base channel.Opener
	switch cfg.Strip.Backend {
	case config.BackendSPI:
		if _, err := host.Init(); err != nil {
			return nil, errors.Wrap(err, "initializing host drivers")
		}
		base = spiline.Opener{}

	case config.BackendSim:
		e.Sim = &sim.Opener{RealTime: true}
		base = e.Sim

	default:
		return nil, errors.Errorf("unknown backend %q", cfg.Strip.Backend)
	}

	if cfg.HTTP.Preview {
		if e.Preview, err = preview.New(preview.Config{
			Profile:    profile,
			TickRate:   timing.TickRate,
			Resolution: res,
			Layout:     cfg.Display.Wiring.Layout(res),
			Logger:     logger.WithField("component", "preview"),
		}); err != nil {
			return nil, err
		}
	}

	stripCfg, err := cfg.StripConfig()
	if err != nil {
		return nil, err
	}
	stripCfg.Logger = logger.WithField("component", "strip")

	e.Matrix = matrix.New(e.tapOpener(base), matrix.Config{
		Strip:  stripCfg,
		Wiring: cfg.Display.Wiring,
		Logger: logger.WithField("component", "matrix"),
	})

	var link board.Network = board.Offline{}
	if cfg.Network.Enabled {
		link = &board.HostNetwork{
			Options: network.InterfaceOptions{
				Interface:     cfg.Network.Interface,
				TargetAddress: cfg.Network.TargetAddress,
			},
			Logger: logger.WithField("component", "network"),
		}
	}

	clock, err := cfg.NewClock(logger.WithField("component", "clock"))
	if err != nil {
		return nil, err
	}

	e.System = &board.System{
		Identity:       cfg.Board,
		Display:        e.Matrix,
		Resolution:     res,
		Network:        link,
		ConnectTimeout: time.Duration(cfg.Network.ConnectTimeout),
		Clock:          clock,
		Logger:         logger,
	}

	if cfg.HTTP.Addr != "" {
		if err := e.serve(cfg.HTTP.Addr); err != nil {
			return nil, err
		}
	}

	if err := e.System.Start(ctx); err != nil {
		return nil, errors.Wrap(err, "starting board")
	}

	if level := cfg.Display.Brightness; level != strip.MaxBrightness {
		if e.Matrix.SupportsBrightnessControl() {
			if err := e.Matrix.SetBrightness(ctx, level); err != nil {
				return nil, errors.Wrap(err, "setting brightness")
			}
		} else {
			logger.Warnf("Display does not support brightness control; ignoring brightness %d.", level)
		}
	}

	e.bg.Go(func() error {
		e.watchNetwork(e.bgCtx)
		return nil
	})

	return &e, nil
}

// tapOpener wraps base so that every Line it opens is also recorded to the
// capture file and mirrored to the preview, if either is enabled.
func (e *Env) tapOpener(base channel.Opener) channel.Opener {
	return channel.OpenerFunc(func(pin string, rate physic.Frequency) (channel.Line, error) {
		line, err := base.OpenLine(pin, rate)
		if err != nil {
			return nil, err
		}
		lines := []channel.Line{line}

		if path := e.Config.Capture.Path; path != "" {
			cc := capture.Config{
				Compression: e.Config.Capture.Compression,
				TickRate:    rate,
				Logger:      e.Logger.WithField("component", "capture"),
			}
			cw, err := cc.Create(path)
			if err != nil {
				_ = line.Close()
				return nil, errors.Wrap(err, "creating capture file")
			}
			lines = append(lines, cw)
		}

		if e.Preview != nil {
			lines = append(lines, e.Preview)
		}
		return channel.Tee(lines...), nil
	})
}

func (e *Env) serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.Registry, promhttp.HandlerOpts{}))
	if e.Preview != nil {
		mux.Handle("/preview", e.Preview)
		mux.Handle("/health", e.Preview.HealthHandler())
	} else {
		mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":     "ok",
				"resolution": e.Config.Display.Resolution().String(),
			})
		})
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %q", addr)
	}
	srv := &http.Server{Handler: mux}
	e.listener, e.server = l, srv

	e.bg.Go(func() error {
		if err := srv.Serve(l); err != http.ErrServerClosed {
			e.Logger.Errorf("HTTP server failed: %s", err)
			return errors.Wrap(err, "serving HTTP")
		}
		return nil
	})
	e.Logger.Infof("Serving HTTP on %s.", l.Addr())
	return nil
}

func (e *Env) watchNetwork(ctx context.Context) {
	events := e.System.Network.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			e.Logger.Warnf("Network event: %s", ev)
		}
	}
}

// Addr returns the address of the HTTP server, or nil if it is not running.
func (e *Env) Addr() net.Addr {
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// Close stops the board, flushing any capture file, and stops the HTTP
// server.
func (e *Env) Close() error { return e.shutdown() }

func (e *Env) shutdown() error {
	if e.cancelFn != nil {
		e.cancelFn()
		e.cancelFn = nil
	}

	var err error
	if e.System != nil {
		err = e.System.Close()
		e.System = nil
	}

	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := e.server.Shutdown(ctx); serr != nil && err == nil {
			err = serr
		}
		e.server, e.listener = nil, nil
	}
	if werr := e.bg.Wait(); werr != nil && err == nil {
		err = werr
	}

	if e.Preview != nil {
		if perr := e.Preview.Close(); perr != nil && err == nil {
			err = perr
		}
	}
	return err
}

// RunFunc is the body of a command.
type RunFunc func(ctx context.Context, env *Env) error

// Main is a command entry point. It parses the command line, sets up the
// board, and calls fn with a Context that is cancelled on SIGINT or SIGTERM.
//
// Commands register any flags of their own with pflag.CommandLine before
// calling Main.
func Main(fn RunFunc) {
	var flags Flags
	flags.Register(pflag.CommandLine)
	pflag.Parse()

	os.Exit(run(&flags, pflag.CommandLine, fn))
}

func run(flags *Flags, fs *pflag.FlagSet, fn RunFunc) int {
	bootLogger := NewLogger(os.Stderr, logrus.InfoLevel)

	cfg, err := flags.Config(fs)
	if err != nil {
		bootLogger.Errorf("Failed to load configuration: %s", err)
		return 1
	}
	level, _ := cfg.LogLevel()
	logger := NewLogger(os.Stderr, level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	env, err := Setup(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("Failed to set up board: %s", err)
		return 1
	}
	defer func() {
		if err := env.Close(); err != nil {
			logger.Errorf("Failed to shut down cleanly: %s", err)
		}
	}()

	if err := fn(ctx, env); err != nil && errors.Cause(err) != context.Canceled {
		logger.Errorf("Command failed: %s", err)
		return 1
	}
	logger.Info("Shutdown complete.")
	return 0
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/1broseidon/randrd/internal/backend"
	"github.com/1broseidon/randrd/internal/config"
	"github.com/1broseidon/randrd/internal/display"
	"github.com/1broseidon/randrd/internal/ipc"
	"github.com/1broseidon/randrd/internal/layout"
	"github.com/1broseidon/randrd/internal/logging"
	"github.com/1broseidon/randrd/internal/notify"
	"github.com/1broseidon/randrd/internal/x11"
)

// daemonFlags carries the command line into the fx graph.
type daemonFlags struct {
	ConfigPath string
	SocketPath string
	Display    string
	LogLevel   string
}

func newDaemonCmd() *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the display configuration daemon (foreground)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socket, err := socketPath()
			if err != nil {
				return err
			}
			return runDaemon(daemonFlags{
				ConfigPath: configPath,
				SocketPath: socket,
				Display:    displayFlag,
				LogLevel:   logLevel,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	return cmd
}

func runDaemon(flags daemonFlags) error {
	app := fx.New(appOptions(flags))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, app.StartTimeout())
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	code := 0
	select {
	case <-ctx.Done():
	case sig := <-app.Wait():
		code = sig.ExitCode
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if code != 0 {
		return fmt.Errorf("daemon stopped with exit code %d", code)
	}
	return nil
}

// appOptions wires the daemon. Constructors run in dependency order and
// lifecycle hooks stop in reverse, so the X connection closes last.
func appOptions(flags daemonFlags) fx.Option {
	return fx.Options(
		fx.Supply(flags),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			if log == nil {
				return fxevent.NopLogger
			}
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(
			newConfig,
			newLogger,
			newConnection,
			newBackend,
			newLoop,
			newManager,
			newIPCServer,
			newNotifier,
		),
		fx.Invoke(registerHooks),
	)
}

func newConfig(flags daemonFlags) (*config.Config, error) {
	res, err := loadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg := res.Config
	if flags.Display != "" {
		cfg.Display = flags.Display
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	return cfg, nil
}

func newLogger(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// Sync fails on terminals; nothing to report.
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

func newConnection(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*x11.Connection, error) {
	if cfg.XAuthority != "" {
		if err := os.Setenv("XAUTHORITY", cfg.XAuthority); err != nil {
			return nil, fmt.Errorf("set XAUTHORITY: %w", err)
		}
	}
	conn, err := x11.NewConnection(cfg.Display, logger.Named("x11"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func newBackend(conn *x11.Connection, cfg *config.Config, logger *zap.Logger) (*backend.X11Backend, error) {
	return backend.NewX11Backend(conn, logger.Named("backend"),
		display.WithDPI(cfg.DPI),
		display.WithUnderscanBorder(cfg.UnderscanBorderPercent),
	)
}

func newLoop(conn *x11.Connection, b *backend.X11Backend, logger *zap.Logger) *backend.Loop {
	return backend.NewLoop(conn, b.HandleScreenChange, logger.Named("loop"))
}

func newManager(b *backend.X11Backend, cfg *config.Config, loop *backend.Loop, logger *zap.Logger) *layout.Manager {
	m := layout.NewManager(b, cfg, loop, logger.Named("layout"))
	b.Subscribe(m)
	return m
}

func newIPCServer(flags daemonFlags, cfg *config.Config, b *backend.X11Backend, m *layout.Manager, loop *backend.Loop, logger *zap.Logger) (*ipc.Server, error) {
	displayName := cfg.Display
	if displayName == "" {
		displayName = os.Getenv("DISPLAY")
	}
	return ipc.NewServer(ipc.ServerConfig{
		SocketPath: flags.SocketPath,
		Display:    displayName,
		Backend:    b,
		Layout:     m,
		Runner:     loop,
		LoadConfig: func() (*config.Config, error) {
			res, err := loadConfig(flags.ConfigPath)
			if err != nil {
				return nil, err
			}
			return res.Config, nil
		},
		Logger: logger.Named("ipc"),
	})
}

// newNotifier returns nil when the session bus notifier is disabled.
func newNotifier(cfg *config.Config, logger *zap.Logger) (*notify.Notifier, error) {
	if !cfg.DBus.Enabled {
		return nil, nil
	}
	conn, err := notify.NewSessionConn()
	if err != nil {
		return nil, fmt.Errorf("connect to session bus: %w", err)
	}
	return notify.New(conn, cfg.DBus.Name, logger), nil
}

type hookParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *zap.Logger
	Backend    *backend.X11Backend
	Loop       *backend.Loop
	Manager    *layout.Manager
	Server     *ipc.Server
	Notifier   *notify.Notifier
}

func registerHooks(p hookParams) {
	runCtx, cancel := context.WithCancel(context.Background())

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := p.Loop.Run(runCtx); err == nil {
					// The event loop only quits by itself when the X
					// connection is gone.
					p.Logger.Error("display event loop exited")
					if err := p.Shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
						p.Logger.Error("shutdown failed", zap.Error(err))
					}
				}
			}()

			if p.Notifier != nil {
				if err := p.Notifier.Start(); err != nil {
					p.Logger.Warn("session bus notifier disabled", zap.Error(err))
				} else if err := p.Loop.Do(ctx, func() { p.Backend.Subscribe(p.Notifier) }); err != nil {
					cancel()
					return err
				}
			}

			var startErr error
			if err := p.Loop.Do(ctx, func() { startErr = p.Manager.Start() }); err != nil {
				cancel()
				return err
			}
			if startErr != nil {
				p.Logger.Warn("initial layout not applied", zap.Error(startErr))
			}

			if err := p.Server.Start(); err != nil {
				cancel()
				return err
			}
			p.Logger.Info("randrd started", zap.String("socket", p.Server.SocketPath()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Server.Stop()
			cancel()

			var err error
			select {
			case <-p.Loop.Done():
			case <-ctx.Done():
				err = errors.New("display loop did not stop in time")
			}
			if p.Notifier != nil {
				if cerr := p.Notifier.Close(); cerr != nil {
					p.Logger.Warn("close session bus", zap.Error(cerr))
				}
			}
			p.Logger.Info("randrd stopped")
			return err
		},
	})
}

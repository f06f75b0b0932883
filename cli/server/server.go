// Package server implements countergo node-related commands.
package server

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dankorotin/countergo/cli/options"
	"github.com/dankorotin/countergo/pkg/config"
	"github.com/dankorotin/countergo/pkg/core"
	"github.com/dankorotin/countergo/pkg/core/storage"
	"github.com/dankorotin/countergo/pkg/services/metrics"
	"github.com/dankorotin/countergo/pkg/services/rpcsrv"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCommands returns the 'node' and 'db' commands.
func NewCommands() []cli.Command {
	cfgFlags := []cli.Flag{options.ConfigFile, options.Debug}
	var cfgWithOutFlags = make([]cli.Flag, len(cfgFlags), len(cfgFlags)+1)
	copy(cfgWithOutFlags, cfgFlags)
	cfgWithOutFlags = append(cfgWithOutFlags, cli.StringFlag{
		Name:  "out, o",
		Usage: "Output file (stdout if not given)",
	})
	var cfgWithInFlags = make([]cli.Flag, len(cfgFlags), len(cfgFlags)+1)
	copy(cfgWithInFlags, cfgFlags)
	cfgWithInFlags = append(cfgWithInFlags, cli.StringFlag{
		Name:  "in, i",
		Usage: "Input file (stdin if not given)",
	})
	return []cli.Command{
		{
			Name:   "node",
			Usage:  "start a countergo node",
			Action: startServer,
			Flags:  cfgFlags,
		},
		{
			Name:  "db",
			Usage: "database manipulations",
			Subcommands: []cli.Command{
				{
					Name:   "dump",
					Usage:  "dump counter state to a snapshot file",
					Action: dumpDB,
					Flags:  cfgWithOutFlags,
				},
				{
					Name:   "restore",
					Usage:  "restore counter state from a snapshot file",
					Action: restoreDB,
					Flags:  cfgWithInFlags,
				},
			},
		},
	}
}

func initEngine(cfg config.Config, log *zap.Logger) (*core.Engine, error) {
	store, err := storage.NewStore(cfg.ApplicationConfiguration.DBConfiguration)
	if err != nil {
		return nil, fmt.Errorf("could not initialize storage: %w", err)
	}
	engine, err := core.NewEngine(cfg.ProtocolConfiguration, store, log)
	if err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			log.Warn("failed to close the DB", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("could not initialize engine: %w", err)
	}
	return engine, nil
}

func dumpDB(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	engine, err := initEngine(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer engine.Close()

	data, err := engine.DumpState()
	if err != nil {
		return cli.NewExitError(fmt.Errorf("failed to dump state: %w", err), 1)
	}
	if out := ctx.String("out"); out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return cli.NewExitError(fmt.Errorf("can't write to file %s: %w", out, err), 1)
		}
	} else {
		if _, err := os.Stdout.Write(data); err != nil {
			return cli.NewExitError(err, 1)
		}
	}
	return nil
}

func restoreDB(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	engine, err := initEngine(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer engine.Close()

	var data []byte
	if in := ctx.String("in"); in != "" {
		data, err = os.ReadFile(in)
		if err != nil {
			return cli.NewExitError(fmt.Errorf("can't read file %s: %w", in, err), 1)
		}
	} else {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
	}
	if err := engine.RestoreState(data); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to restore state: %w", err), 1)
	}
	return nil
}

func startServer(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	var logDebug = ctx.Bool("debug")
	log, logLevel, err := options.HandleLoggingParams(logDebug, cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	engine, err := initEngine(cfg, log)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	errChan := make(chan error)
	rpcServer := rpcsrv.New(engine, cfg.ApplicationConfiguration.RPC, log, errChan)
	prometheus := metrics.NewPrometheusService(cfg.ApplicationConfiguration.Prometheus, log)
	pprof := metrics.NewPprofService(cfg.ApplicationConfiguration.Pprof, log)

	rpcServer.Start()
	if err := prometheus.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to start Prometheus service: %w", err), 1)
	}
	if err := pprof.Start(); err != nil {
		return cli.NewExitError(fmt.Errorf("failed to start Pprof service: %w", err), 1)
	}

	log.Info("node started",
		zap.String("useragent", config.UserAgent()),
		zap.Stringer("address", engine.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	var shutdownErr error
Main:
	for {
		select {
		case err := <-errChan:
			shutdownErr = fmt.Errorf("server error: %w", err)
			break Main
		case sig := <-sigCh:
			log.Info("signal received", zap.Stringer("name", sig))
			switch sig {
			case syscall.SIGHUP:
				// Reload the logging level, the rest of the config is fixed
				// for the node lifetime.
				newCfg, err := options.GetConfigFromContext(ctx)
				if err != nil {
					log.Warn("can't reread the config file, signal ignored", zap.Error(err))
					break
				}
				if !newCfg.ApplicationConfiguration.EqualsButServices(&cfg.ApplicationConfiguration) {
					log.Warn("changing the application configuration requires a restart, signal ignored")
					break
				}
				level := zapcore.InfoLevel
				if len(newCfg.ApplicationConfiguration.LogLevel) > 0 {
					level, err = zapcore.ParseLevel(newCfg.ApplicationConfiguration.LogLevel)
					if err != nil {
						log.Warn("restored the log level, signal ignored", zap.Error(err))
						break
					}
				}
				if logDebug {
					level = zapcore.DebugLevel
				}
				logLevel.SetLevel(level)
				log.Warn("using the new logging level", zap.Stringer("level", level))
			case syscall.SIGINT, syscall.SIGTERM:
				break Main
			}
		}
	}

	log.Info("shutting down the node")
	rpcServer.Shutdown()
	prometheus.ShutDown()
	pprof.ShutDown()
	if err := engine.Close(); err != nil {
		log.Warn("failed to close the engine", zap.Error(err))
	}
	_ = log.Sync()

	if shutdownErr != nil {
		return cli.NewExitError(shutdownErr, 1)
	}
	return nil
}

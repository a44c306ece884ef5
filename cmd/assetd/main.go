// Command assetd serves a configured asset library over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/illmade-knight/go-assetcache/pkg/assetcache"
	"github.com/illmade-knight/go-assetcache/pkg/config"
	"github.com/illmade-knight/go-assetcache/pkg/invalidation"
	"github.com/illmade-knight/go-assetcache/pkg/library"
	"github.com/illmade-knight/go-assetcache/pkg/loader"
	"github.com/illmade-knight/go-assetcache/pkg/microservice"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "assetd",
		Usage:     "typed asset cache server",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "assets.yaml",
				Usage:   "path to the asset configuration file",
				Sources: cli.EnvVars("ASSETD_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "overrides log_level from the config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "preload assets and serve them over HTTP",
				Action: serveAction(stderr),
			},
			{
				Name:   "validate",
				Usage:  "check the configuration and list registered assets",
				Action: validateAction,
			},
			{
				Name:      "get",
				Usage:     "load one asset and write it to stdout",
				ArgsUsage: "<collection> <key>",
				Action:    getAction(stderr),
			},
		},
		DefaultCommand: "serve",
	}
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "assetd").Logger()
}

// buildLibrary wires source, loader and library from cfg. The returned
// cleanup closes the loader and any backend client.
func buildLibrary(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*library.Library, func(), error) {
	src, closeBackend, err := newSource(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	l, err := loader.New(src, loader.Raw, logger)
	if err != nil {
		_ = src.Close()
		closeBackend()
		return nil, nil, err
	}
	cleanup := func() {
		if err := l.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing asset source.")
		}
		closeBackend()
	}

	lib, err := library.New(cfg.Collections, &assetcache.Config{
		MaxEntries:         cfg.MaxEntries,
		PreloadConcurrency: cfg.PreloadConcurrency,
	}, l, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return lib, cleanup, nil
}

func serveAction(stderr io.Writer) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(stderr, cfg.LogLevel)

		lib, cleanup, err := buildLibrary(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		if cfg.Preload {
			if err := lib.Preload(ctx); err != nil {
				// Failed keys stay absent and are retried on first request.
				logger.Warn().Err(err).Msg("Some assets failed to preload.")
			}
		}

		server := microservice.NewServer(lib, cfg.HTTPPort, logger)
		if err := server.Start(); err != nil {
			return err
		}

		var subscriber *invalidation.Subscriber
		var closePubsub func()
		if cfg.Invalidation != nil {
			subscriber, closePubsub, err = newSubscriber(ctx, cfg, lib, logger)
			if err != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
				return err
			}
			defer closePubsub()
			if err := subscriber.Start(ctx); err != nil {
				return err
			}
		}

		logger.Info().Str("port", server.GetHTTPPort()).Strs("collections", lib.Collections()).Msg("assetd is running.")
		<-ctx.Done()
		logger.Info().Msg("Shutdown signal received.")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		var errs []error
		if subscriber != nil {
			errs = append(errs, subscriber.Stop(shutdownCtx))
		}
		errs = append(errs, server.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	}
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	w := cmd.Root().Writer
	fmt.Fprintf(w, "source: %s\n", cfg.Source.Kind)
	for _, col := range cfg.Collections {
		reg, err := col.Registry()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s (%d assets)\n", col.Name, reg.Len())
		for _, e := range reg.Entries() {
			fmt.Fprintf(w, "  %s -> %s\n", e.Key, e.Path())
		}
	}
	return nil
}

func getAction(stderr io.Writer) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() != 2 {
			return fmt.Errorf("expected <collection> <key>, got %d arguments", cmd.Args().Len())
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(stderr, cfg.LogLevel)

		lib, cleanup, err := buildLibrary(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		loadCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		data, err := lib.Get(loadCtx, cmd.Args().Get(0), cmd.Args().Get(1))
		if err != nil {
			return err
		}
		_, err = cmd.Root().Writer.Write(data)
		return err
	}
}

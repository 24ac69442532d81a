package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/config/watcher"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect bridge configuration",
	}

	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a configuration file and the environment overlay",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := opts.loadConfig(firstArg(args))
			if err != nil {
				var cfgErr *config.ConfigError
				if errors.As(err, &cfgErr) {
					for _, fe := range cfgErr.Fields() {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", fe)
					}
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}

	printCmd := &cobra.Command{
		Use:   "print [file]",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(firstArg(args))
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}

	configCmd.AddCommand(validateCmd, printCmd, newConfigWatchCommand(opts))
	return configCmd
}

func newConfigWatchCommand(opts *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		debounce time.Duration
		once     bool
	)

	watchCmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Re-validate a configuration file every time it changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := firstArg(args)
			if path == "" {
				path = opts.configPath
			}
			if path == "" {
				return errors.New("config watch needs a file argument or --config")
			}

			logger, err := opts.newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			w, err := watcher.New(path, func(r watcher.Result) { reportWatch(out, errOut, r) },
				watcher.WithInterval(interval),
				watcher.WithDebounce(debounce),
				watcher.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			if r := w.Check(); once {
				return r.Err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			logger.Info("watching configuration", zap.String("path", w.Path()))
			return w.Run(ctx)
		},
	}

	flags := watchCmd.Flags()
	flags.DurationVar(&interval, "interval", 500*time.Millisecond, "polling interval")
	flags.DurationVar(&debounce, "debounce", 100*time.Millisecond, "quiet period before a changed file is loaded")
	flags.BoolVar(&once, "once", false, "validate once and exit")
	return watchCmd
}

func reportWatch(out, errOut io.Writer, r watcher.Result) {
	stamp := r.Time.Format(time.TimeOnly)
	switch {
	case r.Op == watcher.OpRemove:
		fmt.Fprintf(errOut, "%s %s removed\n", stamp, r.Path)
	case r.Err != nil:
		fmt.Fprintf(errOut, "%s %s invalid: %v\n", stamp, r.Path, r.Err)
		var cfgErr *config.ConfigError
		if errors.As(r.Err, &cfgErr) {
			for _, fe := range cfgErr.Fields() {
				fmt.Fprintf(errOut, "  %s\n", fe)
			}
		}
	default:
		fmt.Fprintf(out, "%s %s valid (%s)\n", stamp, r.Path, r.Op)
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// Command keybridge exercises the editing-core to UI event bridge.
//
// It builds the bridge against a simulated editing core, drives the frame
// loop, and reports what the pipeline did. Configuration comes from an
// optional TOML file overlaid with KEYBRIDGE_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/keybridge/internal/app"
	"github.com/dshills/keybridge/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "keybridge",
		Short:         "Event bridge between an editing core and a frame-driven UI",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to TOML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", string(app.LogFormatConsole), "Log format (console, json)")

	rootCmd.AddCommand(
		newRunCommand(opts),
		newConfigCommand(opts),
	)
	return rootCmd
}

// loadConfig reads the configuration named by path, falling back to the
// --config flag.
func (o *rootOptions) loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = o.configPath
	}
	return config.LoadFile(path)
}

func (o *rootOptions) newLogger() (*zap.Logger, error) {
	return app.NewLogger(app.LoggerConfig{
		Level:  o.logLevel,
		Format: app.LogFormat(o.logFormat),
		Output: os.Stderr,
	})
}

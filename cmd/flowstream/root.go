package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowstream/pkg/flowstream/config"
)

// rootOptions holds global flags and the state PersistentPreRunE derives
// from them.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	settings config.Settings
	logger   *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "flowstream",
		Short:         "Stream processing for monitoring events",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (.yaml, .json or .toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override log.format (auto|text|json)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newIngestCommand(opts))
	return cmd
}

// load reads the config file, applies flag overrides and builds the logger.
func (o *rootOptions) load(logOut io.Writer) error {
	cfg := config.New(nil)
	if o.configPath != "" {
		var err error
		if cfg, err = config.FromFile(o.configPath); err != nil {
			return err
		}
	}

	settings, err := config.LoadSettings(cfg)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		settings.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		settings.Log.Format = o.logFormat
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	o.settings = settings
	o.logger = newLogger(logOut, settings.Log)
	return nil
}

// newLogger picks a text handler for terminals and JSON otherwise, unless
// the format is forced.
func newLogger(w io.Writer, s config.LogSettings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.Level)); err != nil {
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	format := s.Format
	if format == "auto" {
		format = "json"
		if isTerminal(w) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func writeJSONLine(w io.Writer, data []byte) error {
	_, err := fmt.Fprintf(w, "%s\n", data)
	return err
}

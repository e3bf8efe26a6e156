// Package logging builds the *log.Logger shared by every component.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger output.
type Config struct {
	Prefix string
	// Debug logs to stdout with timestamps; otherwise stderr, no flags.
	Debug bool
	// File, when set, also receives every line through a rotating writer.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// New returns the logger and a close function for the rotating file.
func New(cfg Config) (*log.Logger, func() error) {
	var out io.Writer = os.Stderr
	flags := 0
	if cfg.Debug {
		out = os.Stdout
		flags = log.LstdFlags
	}

	closeFn := func() error { return nil }
	if cfg.File != "" {
		if cfg.MaxSizeMB <= 0 {
			cfg.MaxSizeMB = 10
		}
		if cfg.MaxBackups <= 0 {
			cfg.MaxBackups = 3
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		out = io.MultiWriter(out, rotating)
		flags = log.LstdFlags
		closeFn = rotating.Close
	}

	return log.New(out, cfg.Prefix, flags), closeFn
}

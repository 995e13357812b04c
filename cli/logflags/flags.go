package logflags

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Flags struct {
	Level    zapcore.Level
	Encoding string
	// File is the path of a log file rotated by size.  Empty means
	// standard error.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

func (f *Flags) SetFlags(fs *flag.FlagSet) {
	f.Level = zapcore.InfoLevel
	fs.Var(&f.Level, "log.level", "logging level (debug, info, warn, error)")
	fs.StringVar(&f.Encoding, "log.encoding", "console", "logging encoding (console or json)")
	fs.StringVar(&f.File, "log.file", "", "write logs to this file instead of stderr")
	fs.IntVar(&f.MaxSizeMB, "log.maxsize", 100, "rotate the log file after this many megabytes")
	fs.IntVar(&f.MaxBackups, "log.maxbackups", 5, "number of rotated log files to keep")
}

// Visited reports whether a flag of fs was set on the command line.
func Visited(fs *flag.FlagSet) func(name string) bool {
	return func(name string) bool {
		var set bool
		fs.Visit(func(fl *flag.Flag) { set = set || fl.Name == name })
		return set
	}
}

// Apply sets flags that were not given on the command line, as reported
// by changed, from a config file's log block.
func (f *Flags) Apply(changed func(name string) bool, level, encoding, file string) error {
	if level != "" && !changed("log.level") {
		if err := f.Level.Set(level); err != nil {
			return err
		}
	}
	if encoding != "" && !changed("log.encoding") {
		f.Encoding = encoding
	}
	if file != "" && !changed("log.file") {
		f.File = file
	}
	return nil
}

func (f *Flags) Open() (*zap.Logger, error) {
	var enc zapcore.Encoder
	switch f.Encoding {
	case "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	case "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return nil, fmt.Errorf("unknown log encoding %q", f.Encoding)
	}
	ws := zapcore.Lock(os.Stderr)
	if f.File != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   f.File,
			MaxSize:    f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
		})
	}
	return zap.New(zapcore.NewCore(enc, ws, f.Level)), nil
}

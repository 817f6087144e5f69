package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options configures Setup. LogFilePath, when non-empty, routes logs
// through a rotating file sink instead of stderr. LogMaxSizeMB and
// LogMaxBackups tune that rotating sink; zero means keep
// RotatingFile's defaults.
type Options struct {
	Debug         bool
	LogFilePath   string
	LogMaxSizeMB  int64
	LogMaxBackups int
}

// Setup installs the process-wide default slog logger (called once,
// at cmd/photon startup — library code only ever logs against
// whatever default the CLI installed here, never calls
// slog.SetDefault itself). Returns a closer for the rotating file, if
// one was opened.
func Setup(opts Options) (closer func() error, err error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closer = func() error { return nil }

	if opts.LogFilePath != "" {
		var rotateOpts []Option
		if opts.LogMaxSizeMB > 0 {
			rotateOpts = append(rotateOpts, WithMaxSize(opts.LogMaxSizeMB*1024*1024))
		}
		if opts.LogMaxBackups > 0 {
			rotateOpts = append(rotateOpts, WithMaxBackups(opts.LogMaxBackups))
		}
		rf, err := NewRotatingFile(opts.LogFilePath, rotateOpts...)
		if err != nil {
			return nil, err
		}
		w = rf
		closer = rf.Close
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closer, nil
}

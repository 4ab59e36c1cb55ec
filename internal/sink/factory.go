package sink

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Options carries everything the sink factory may need.
type Options struct {
	Mode       Mode
	OutputDir  string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	StreamHost string
	StreamPort int
	Version    string
	Stdout     io.Writer
	Logger     hclog.Logger
}

// New builds the sink for opts.Mode.
func New(opts Options) (Sink, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	logger := opts.Logger.Named(string(opts.Mode))

	switch opts.Mode {
	case ModeCSV:
		return NewCSV(opts.OutputDir, NewConsole(opts.Stdout), logger)
	case ModeSARIF:
		return NewSARIF(opts.OutputDir, opts.Version, NewConsole(opts.Stdout), logger)
	case ModeFile:
		return NewFile(FileOptions{Dir: opts.LogDir, MaxSizeMB: opts.MaxSizeMB, MaxBackups: opts.MaxBackups}, logger)
	case ModeStdout:
		return NewStdout(opts.Stdout, logger), nil
	case ModeStream:
		return NewStream(opts.StreamHost, opts.StreamPort, logger)
	default:
		return nil, fmt.Errorf("unsupported output %q", opts.Mode)
	}
}

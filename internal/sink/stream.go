package sink

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the file the file sink writes to inside its directory.
const LogFileName = "github_watchman.log"

const dialTimeout = 10 * time.Second

// NewStdout returns a sink that writes JSON lines to w.
func NewStdout(w io.Writer, logger hclog.Logger) *JSONLines {
	return newJSONLines(w, nil, logger)
}

// FileOptions configures the rotating file sink.
type FileOptions struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
}

// NewFile returns a sink appending JSON lines to <dir>/github_watchman.log with size based rotation.
func NewFile(opts FileOptions, logger hclog.Logger) (*JSONLines, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("log path %q: %w", opts.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("log path %q is not a directory", opts.Dir)
	}
	w := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, LogFileName),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		LocalTime:  true,
	}
	return newJSONLines(w, w, logger), nil
}

// NewStream returns a sink that sends JSON lines over a TCP connection.
func NewStream(host string, port int, logger hclog.Logger) (*JSONLines, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return newJSONLines(conn, conn, logger), nil
}

package sink

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/scan-io-git/watchman/internal/findings"
)

// Source identifies watchman in every emitted record.
const Source = "GitHub Watchman"

// Messenger receives progress and failure messages.
type Messenger interface {
	Info(msg string)
	Critical(msg string)
}

// Detection describes the rule and scope a batch of findings belongs to.
type Detection struct {
	FileStem string
	Scope    findings.Scope
	RuleName string
	Severity string
}

// Sink is an output destination for findings and run messages.
//
// File based sinks write on EmitMany and buffer EmitOne until Close.
// Streaming sinks write EmitOne immediately and loop in EmitMany.
type Sink interface {
	Messenger
	EmitOne(d Detection, f findings.Finding) error
	EmitMany(d Detection, fs []findings.Finding) error
	Close() error
}

// Mode selects a sink. It implements pflag.Value.
type Mode string

const (
	ModeCSV    Mode = "csv"
	ModeFile   Mode = "file"
	ModeStdout Mode = "stdout"
	ModeStream Mode = "stream"
	ModeSARIF  Mode = "sarif"
)

// Modes lists every supported output mode.
var Modes = []Mode{ModeCSV, ModeFile, ModeStdout, ModeStream, ModeSARIF}

var _ pflag.Value = (*Mode)(nil)

func (m *Mode) String() string { return string(*m) }

// Set parses a mode flag value.
func (m *Mode) Set(s string) error {
	candidate := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, mode := range Modes {
		if candidate == mode {
			*m = candidate
			return nil
		}
	}
	return fmt.Errorf("unsupported output %q, expected one of %v", s, Modes)
}

func (m *Mode) Type() string { return "output" }

// Console reports whether the mode prints human readable progress to the terminal.
func (m Mode) Console() bool {
	return m == ModeCSV || m == ModeSARIF
}

package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/watchman/internal/findings"
)

// LocalTimeLayout formats the localtime field of JSON lines.
const LocalTimeLayout = "2006-01-02 15:04:05,000000"

type notificationLine struct {
	LocalTime     string           `json:"localtime"`
	Level         string           `json:"level"`
	Source        string           `json:"source"`
	Scope         findings.Scope   `json:"scope"`
	Severity      string           `json:"severity"`
	DetectionType string           `json:"detection_type"`
	DetectionData findings.Finding `json:"detection_data"`
}

type messageLine struct {
	LocalTime string `json:"localtime"`
	Level     string `json:"level"`
	Source    string `json:"source"`
	Message   string `json:"message"`
}

// JSONLines writes one JSON object per line. It backs the file, stdout and stream sinks.
type JSONLines struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
	logger hclog.Logger
}

func newJSONLines(w io.Writer, closer io.Closer, logger hclog.Logger) *JSONLines {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &JSONLines{w: w, closer: closer, now: time.Now, logger: logger}
}

// Info writes an INFO line. Write failures are logged.
func (s *JSONLines) Info(msg string) {
	s.message("INFO", msg)
}

// Critical writes a CRITICAL line. Write failures are logged.
func (s *JSONLines) Critical(msg string) {
	s.message("CRITICAL", msg)
}

func (s *JSONLines) message(level, msg string) {
	err := s.write(messageLine{
		LocalTime: s.now().Format(LocalTimeLayout),
		Level:     level,
		Source:    Source,
		Message:   msg,
	})
	if err != nil {
		s.logger.Error("failed to write message", "level", level, "error", err)
	}
}

// EmitOne writes a NOTIFY line for a finding.
func (s *JSONLines) EmitOne(d Detection, f findings.Finding) error {
	return s.write(notificationLine{
		LocalTime:     s.now().Format(LocalTimeLayout),
		Level:         "NOTIFY",
		Source:        Source,
		Scope:         d.Scope,
		Severity:      d.Severity,
		DetectionType: d.RuleName,
		DetectionData: f,
	})
}

// EmitMany writes one NOTIFY line per finding and keeps going past failures.
func (s *JSONLines) EmitMany(d Detection, fs []findings.Finding) error {
	var failed int
	var lastErr error
	for _, f := range fs {
		if err := s.EmitOne(d, f); err != nil {
			failed++
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%d of %d notifications not written: %w", failed, len(fs), lastErr)
	}
	return nil
}

// Close releases the underlying writer.
func (s *JSONLines) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *JSONLines) write(v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode line: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(buf.Bytes())
	return err
}

package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/watchman/internal/findings"
)

type batchKey struct {
	stem  string
	scope findings.Scope
}

// CSV writes one file per rule and scope into a directory.
type CSV struct {
	*Console
	dir     string
	logger  hclog.Logger
	pending map[batchKey][]findings.Finding
	order   []batchKey
}

// NewCSV creates a CSV sink writing into dir.
func NewCSV(dir string, console *Console, logger hclog.Logger) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output directory %q: %w", dir, err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &CSV{
		Console: console,
		dir:     dir,
		logger:  logger,
		pending: make(map[batchKey][]findings.Finding),
	}, nil
}

// Path returns the file a rule and scope are written to.
func (s *CSV) Path(fileStem string, scope findings.Scope) string {
	return filepath.Join(s.dir, fmt.Sprintf("exposed_%s_%s.csv", fileStem, scope))
}

// EmitOne buffers the finding until Close.
func (s *CSV) EmitOne(d Detection, f findings.Finding) error {
	key := batchKey{stem: d.FileStem, scope: d.Scope}
	if _, ok := s.pending[key]; !ok {
		s.order = append(s.order, key)
	}
	s.pending[key] = append(s.pending[key], f)
	return nil
}

// EmitMany writes the findings of one rule and scope, replacing any previous file.
func (s *CSV) EmitMany(d Detection, fs []findings.Finding) error {
	path := s.Path(d.FileStem, d.Scope)
	if err := writeCSV(path, d.Scope, fs); err != nil {
		return err
	}
	s.Info(fmt.Sprintf("CSV written: %s", path))
	return nil
}

// Close writes everything buffered by EmitOne.
func (s *CSV) Close() error {
	var errs []error
	for _, key := range s.order {
		d := Detection{FileStem: key.stem, Scope: key.scope}
		if err := s.EmitMany(d, s.pending[key]); err != nil {
			errs = append(errs, err)
		}
	}
	s.pending = make(map[batchKey][]findings.Finding)
	s.order = nil
	return errors.Join(errs...)
}

func writeCSV(path string, scope findings.Scope, fs []findings.Finding) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	w := csv.NewWriter(file)
	if err := w.Write(findings.Columns(scope)); err != nil {
		return fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	for _, f := range fs {
		if err := w.Write(f.Record()); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return file.Close()
}

package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"SketchSpectra/internal/measure"
	"SketchSpectra/internal/pkg/logger"
)

// TextWriter drops one file per sketch under a timestamped directory.
type TextWriter struct {
	rootPath string
}

// NewTextWriter creates a text writer rooted at rootPath.
func NewTextWriter(rootPath string) *TextWriter {
	return &TextWriter{rootPath: rootPath}
}

// Write renders every report as `op metric value` lines.
func (w *TextWriter) Write(reports []*measure.Report) error {
	dir := filepath.Join(w.rootPath, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create report directory %s", dir)
	}

	for _, r := range reports {
		path := filepath.Join(dir, r.Sketch+".txt")
		file, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "create report file %s", path)
		}
		for _, row := range r.Rows() {
			if _, err := fmt.Fprintf(file, "%s %s %s\n", row[0], row[1], row[2]); err != nil {
				file.Close()
				return errors.Wrapf(err, "write report file %s", path)
			}
		}
		file.Close()
	}
	logger.Infof("Wrote %d reports to %s", len(reports), dir)
	return nil
}

// Close is a no-op for the text writer.
func (w *TextWriter) Close() error { return nil }

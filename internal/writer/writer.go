// Package writer persists measurement reports: to a text directory and to
// ClickHouse.
package writer

import (
	"SketchSpectra/internal/measure"
)

// Writer is a sink for the reports of one measurement run.
type Writer interface {
	Write(reports []*measure.Report) error
	Close() error
}

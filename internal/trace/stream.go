package trace

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"

	"SketchSpectra/internal/pkg/logger"
)

// StreamData is a fully loaded segment of a record file.
type StreamData struct {
	records []Record
}

// Load reads a record file under the given format. The file size must be a
// multiple of the record size, or the file is rejected.
func Load(path string, format *DataFormat) (*StreamData, error) {
	logger.Verbosef("Preparing test data...")
	logger.Infof("Loading records from %s...", path)

	fin, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrBadData, "open %s: %v", path, err)
	}
	defer fin.Close()

	info, err := fin.Stat()
	if err != nil {
		return nil, errors.Wrapf(ErrBadData, "stat %s: %v", path, err)
	}
	size := int64(format.RecordLen())
	if info.Size()%size != 0 {
		return nil, errors.Wrapf(ErrBadData,
			"length of %s is not a multiple of the record size, the file could have been garbled", path)
	}

	s := &StreamData{records: make([]Record, 0, info.Size()/size)}
	buf := make([]byte, format.RecordLen())
	r := bufio.NewReader(fin)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(ErrBadData, "read %s: %v", path, err)
		}
		var rec Record
		if err := format.Read(&rec, buf); err != nil {
			return nil, err
		}
		s.records = append(s.records, rec)
	}
	logger.Verbosef("Records loaded.")
	return s, nil
}

// Write serialises records to a file under the given format.
func Write(path string, format *DataFormat, recs []Record) error {
	fout, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(ErrBadData, "create %s: %v", path, err)
	}
	defer fout.Close()

	w := bufio.NewWriter(fout)
	buf := make([]byte, format.RecordLen())
	for i := range recs {
		if err := format.Write(&recs[i], buf); err != nil {
			return err
		}
		if _, err := w.Write(buf); err != nil {
			return errors.Wrapf(ErrBadData, "write %s: %v", path, err)
		}
	}
	return w.Flush()
}

// Size returns the number of records.
func (s *StreamData) Size() int { return len(s.records) }

// Empty reports whether no records were read.
func (s *StreamData) Empty() bool { return len(s.records) == 0 }

// Records returns all records in input order.
func (s *StreamData) Records() []Record { return s.records }

// Slice returns the records in [lo, hi), bounds-checked.
func (s *StreamData) Slice(lo, hi int) ([]Record, error) {
	if lo < 0 || hi < lo || hi > len(s.records) {
		return nil, errors.Wrapf(ErrBadData, "record range [%d,%d) of %d", lo, hi, len(s.records))
	}
	return s.records[lo:hi], nil
}

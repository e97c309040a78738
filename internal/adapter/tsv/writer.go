// Package tsv writes result rows as a tab-separated table.
package tsv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/couchcryptid/storm-data-verify/internal/domain"
)

// NaNText is how undefined values are written.
const NaNText = "nan"

// Writer appends rows to a tab-separated stream. The header is written with
// the first row and every row is flushed before AppendRow returns.
type Writer struct {
	mu     sync.Mutex
	csv    *csv.Writer
	closer io.Closer
	header []string
}

// NewWriter writes to w.
func NewWriter(w io.Writer) *Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return &Writer{csv: cw}
}

// Create truncates or creates path and returns a Writer owning the file.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

func (w *Writer) AppendRow(_ context.Context, row domain.ResultRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	header := row.Header()
	if w.header == nil {
		if err := w.csv.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		w.header = header
	} else if !slices.Equal(w.header, header) {
		return fmt.Errorf("row %s: header %v does not match table header %v", row.Task, header, w.header)
	}

	record := row.Prefix()
	for _, v := range row.Values {
		record = append(record, FormatValue(v))
	}
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes buffered output and closes the underlying file, if owned.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// FormatValue renders a metric value with the shortest exact representation.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return NaNText
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseValue is the inverse of FormatValue.
func ParseValue(s string) (float64, error) {
	if s == NaNText {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

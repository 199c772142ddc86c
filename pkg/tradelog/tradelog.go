// Package tradelog appends every order intent to a CSV file. The log
// is write-only from the engine's point of view.
package tradelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

var header = []string{"timestamp", "symbol", "side", "qty", "price", "type", "atr"}

// Record is one order intent row.
type Record struct {
	Timestamp time.Time
	Symbol    string
	Side      string
	Qty       float64
	Price     float64
	EventType string
	ATR       float64
}

// Writer appends records to a CSV file, creating it with a header row
// on first use.
type Writer struct {
	path string
}

// NewWriter ensures the log file exists with its header and returns a
// writer appending to it.
func NewWriter(path string) (*Writer, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create trade log: %w", err)
		}
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write trade log header: %w", err)
		}
		w.Flush()
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close trade log: %w", err)
		}
	}
	return &Writer{path: path}, nil
}

// Append writes one record. The file is opened per call so a crash
// never loses buffered rows.
func (w *Writer) Append(r Record) error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	row := []string{
		r.Timestamp.Format(time.RFC3339),
		r.Symbol,
		r.Side,
		strconv.FormatFloat(r.Qty, 'f', -1, 64),
		strconv.FormatFloat(r.Price, 'f', -1, 64),
		r.EventType,
		strconv.FormatFloat(r.ATR, 'f', -1, 64),
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("append trade log row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

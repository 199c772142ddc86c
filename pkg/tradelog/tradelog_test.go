package tradelog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return rows
}

func TestNewWriterCreatesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_log.csv")
	if _, err := NewWriter(path); err != nil {
		t.Fatalf("new writer: %v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 1 {
		t.Fatalf("expected header only, got %d rows", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][6] != "atr" {
		t.Fatalf("unexpected header %v", rows[0])
	}
}

func TestAppendAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_log.csv")
	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	ts := time.Date(2025, 6, 2, 10, 5, 0, 0, time.UTC)
	rec := Record{
		Timestamp: ts,
		Symbol:    "AAPL",
		Side:      "buy",
		Qty:       12.5,
		Price:     180.25,
		EventType: "entry",
		ATR:       2.75,
	}
	if err := w.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A second writer over the same file must not rewrite the header.
	w2, err := NewWriter(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec.EventType = "stop_loss"
	rec.Side = "sell"
	if err := w2.Append(rec); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}

	rows := readAll(t, path)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][1] != "AAPL" || rows[1][5] != "entry" || rows[1][3] != "12.5" {
		t.Fatalf("unexpected row %v", rows[1])
	}
	if rows[2][5] != "stop_loss" || rows[2][2] != "sell" {
		t.Fatalf("unexpected row %v", rows[2])
	}
}

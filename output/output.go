// Package output streams scan results into a JSON report file and,
// when configured, exports each detection record over OTLP logs.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/TegranGrigorian/tiktok-cleaner/config"
	"github.com/TegranGrigorian/tiktok-cleaner/logger"
)

const SchemaVersion = "1.0"

type Metrics struct {
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	FilesEnumerated int    `json:"files_enumerated"`
	FilesSkipped    int    `json:"files_skipped"`
	FilesAnalyzed   int    `json:"files_analyzed"`
	FilesOrganized  int    `json:"files_organized"`
	Errors          int    `json:"errors"`
}

// Record is one analyzed file in the report.
type Record struct {
	Path        string            `json:"path"`
	Filename    string            `json:"filename"`
	SizeBytes   int64             `json:"size_bytes"`
	SizeHuman   string            `json:"size_human"`
	Modified    string            `json:"modified,omitempty"`
	Created     string            `json:"created,omitempty"`
	Width       int               `json:"width,omitempty"`
	Height      int               `json:"height,omitempty"`
	Format      string            `json:"format"`
	Kind        string            `json:"kind"`
	Score       int               `json:"score"`
	Verdict     string            `json:"verdict"`
	IsMatch     bool              `json:"is_match"`
	Evidence    []string          `json:"evidence"`
	Indicators  map[string]string `json:"indicators,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Action      string            `json:"action,omitempty"`
}

type Writer struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	first   bool
	metrics *Metrics
	otel    *otelLogger
}

// New opens the report file and writes the document header. An empty
// report path disables the file but keeps OTLP export working.
func New(cfg *config.Config, m *Metrics) (*Writer, error) {
	w := &Writer{first: true, metrics: m}

	if cfg != nil {
		otel, err := newOtelLogger(cfg)
		if err != nil {
			logger.Warnf("OTEL export disabled: %v", err)
		} else {
			w.otel = otel
		}
	}

	if cfg == nil || cfg.ReportFile == "" {
		return w, nil
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	w.file = f
	w.buf = bufio.NewWriterSize(f, 256*1024)
	if _, err := w.buf.WriteString("{\n  \"schema_version\": " +
		fmt.Sprintf("%q", SchemaVersion) + ",\n  \"files\": [\n"); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteRecord appends one file result. Safe for concurrent use.
func (w *Writer) WriteRecord(rec *Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf != nil {
		if !w.first {
			_, _ = w.buf.WriteString(",\n")
		}
		data, err := json.MarshalIndent(rec, "    ", "  ")
		if err == nil {
			_, _ = w.buf.WriteString("    ")
			_, _ = w.buf.Write(data)
		}
		w.first = false
		_ = w.buf.Flush()
	}
	w.otel.Emit("file", rec)
}

func (w *Writer) SetMetrics(m Metrics) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics = &m
}

// Close finishes the JSON document with the final metrics and shuts
// down the OTLP exporter.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf != nil {
		_, _ = w.buf.WriteString("\n  ]")
		if w.metrics != nil {
			if data, err := json.MarshalIndent(w.metrics, "  ", "  "); err == nil {
				_, _ = w.buf.WriteString(",\n  \"metrics\": ")
				_, _ = w.buf.Write(data)
			}
		}
		_, _ = w.buf.WriteString("\n}\n")
		_ = w.buf.Flush()
		_ = w.file.Sync()
		_ = w.file.Close()
		w.buf = nil
		w.file = nil
	}

	if w.otel != nil {
		if w.metrics != nil {
			w.otel.Emit("metrics", w.metrics)
		}
		w.otel.Shutdown()
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Recall Contributors

package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	recallerr "github.com/recall-dev/recall/pkg/errors"
)

// JSONLWriter appends one JSON document per line to a file. It is used
// only from the queue's consumer goroutine, so writes are unsynchronized.
type JSONLWriter struct {
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

var _ Writer = (*JSONLWriter)(nil)

// NewJSONLWriter opens (or creates) the event log for appending.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeTelemetryWriteFailure, "create telemetry dir")
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, recallerr.Wrapf(err, recallerr.CodeTelemetryWriteFailure, "open telemetry log")
	}
	buf := bufio.NewWriter(file)
	return &JSONLWriter{file: file, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (w *JSONLWriter) Write(ev Event) error {
	if err := w.enc.Encode(ev); err != nil {
		return recallerr.Wrapf(err, recallerr.CodeTelemetryWriteFailure, "encode event")
	}
	return nil
}

// Close flushes buffered events and closes the file.
func (w *JSONLWriter) Close() error {
	if err := w.buf.Flush(); err != nil {
		_ = w.file.Close()
		return recallerr.Wrapf(err, recallerr.CodeTelemetryWriteFailure, "flush telemetry log")
	}
	return w.file.Close()
}

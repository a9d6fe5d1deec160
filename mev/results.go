package mev

import (
	"encoding/json"
	"fmt"
	"os"
)

// ResultWriter streams records into a JSON array file, one element per
// Write call, so batched analysis runs never hold a full result set in
// memory. Close finalizes the array; an empty writer still produces a
// valid empty array.
type ResultWriter struct {
	file  *os.File
	count int
}

func NewResultWriter(path string) (*ResultWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create result file %s: %w", path, err)
	}
	return &ResultWriter{file: file}, nil
}

func (w *ResultWriter) Write(record any) error {
	encoded, err := json.MarshalIndent(record, "  ", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode result record: %w", err)
	}
	separator := "[\n  "
	if w.count > 0 {
		separator = ",\n  "
	}
	if _, err := w.file.WriteString(separator); err != nil {
		return fmt.Errorf("unable to write result record: %w", err)
	}
	if _, err := w.file.Write(encoded); err != nil {
		return fmt.Errorf("unable to write result record: %w", err)
	}
	w.count++
	return nil
}

func (w *ResultWriter) Count() int {
	return w.count
}

func (w *ResultWriter) Close() error {
	closing := "\n]\n"
	if w.count == 0 {
		closing = "[]\n"
	}
	if _, err := w.file.WriteString(closing); err != nil {
		w.file.Close()
		return fmt.Errorf("unable to finalize result file: %w", err)
	}
	return w.file.Close()
}

package mev

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestResultWriterStreamsValidArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	writer, err := NewResultWriter(path)
	if err != nil {
		t.Fatalf("NewResultWriter error: %v", err)
	}

	type record struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}
	if err := writer.Write(record{Name: "first", Value: 1}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := writer.Write(record{Name: "second", Value: 2}); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if writer.Count() != 2 {
		t.Fatalf("expected count 2, got %d", writer.Count())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	var decoded []record
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("output is not a valid JSON array: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Name != "first" || decoded[1].Value != 2 {
		t.Fatalf("wrong decoded records: %+v", decoded)
	}
}

func TestResultWriterEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	writer, err := NewResultWriter(path)
	if err != nil {
		t.Fatalf("NewResultWriter error: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	var decoded []any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("output is not a valid JSON array: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected empty array, got %+v", decoded)
	}
}

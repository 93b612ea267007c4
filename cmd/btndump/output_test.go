package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"btndump/record"
)

func TestWriteRecords(t *testing.T) {
	records := []record.Record{{Name: "attack", Value: 0x1030}}

	var out bytes.Buffer
	if err := writeRecords(&out, formatYAML, records); err != nil {
		t.Fatal(err)
	}
	if out.String() != "- name: attack\n  value: 4144\n" {
		t.Fatalf("unexpected yaml %q", out.String())
	}

	out.Reset()
	if err := writeRecords(&out, formatJSON, nil); err != nil {
		t.Fatal(err)
	}
	if out.String() != "[]\n" {
		t.Fatalf("expected an empty JSON list - got %q", out.String())
	}
}

func TestOutputFormatFlag(t *testing.T) {
	var f outputFormat
	if err := f.Set("yaml"); err != nil || f != formatYAML {
		t.Fatalf("expected yaml - got %q, %v", f, err)
	}

	if err := f.Set("xml"); err == nil {
		t.Fatalf("expected xml to be rejected")
	}
}

func TestWriteRecordsFileRemovesPartialOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buttons.json")

	if err := writeRecordsFile(path, outputFormat("xml"), []record.Record{{Name: "jump"}}); err == nil {
		t.Fatalf("expected an unknown format to fail")
	}

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected the partial file to be removed - got %v", err)
	}

	if err := writeRecordsFile(path, formatJSON, []record.Record{{Name: "jump", Value: 0x30}}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Contains(data, []byte(`"name": "jump"`)) {
		t.Fatalf("unexpected file contents %q", data)
	}
}

func TestWriteRecordsFileCreateError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "buttons.json")

	if err := writeRecordsFile(path, formatJSON, nil); err == nil {
		t.Fatalf("expected an error for a missing directory")
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"btndump/record"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

// outputFormat is the --format flag, restricted to the formats writeRecords knows
type outputFormat string

const (
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

var _ pflag.Value = (*outputFormat)(nil)

func (f *outputFormat) String() string {
	return string(*f)
}

func (f *outputFormat) Set(value string) error {
	switch outputFormat(value) {
	case formatJSON, formatYAML:
		*f = outputFormat(value)
		return nil
	}
	return fmt.Errorf("must be %s or %s", formatJSON, formatYAML)
}

func (f *outputFormat) Type() string {
	return "format"
}

// writeRecords serializes records in the requested format
func writeRecords(w io.Writer, format outputFormat, records []record.Record) error {
	if records == nil {
		records = []record.Record{}
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case formatYAML:
		data, err := yaml.Marshal(records)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// writeRecordsFile writes records to path. On any error, including the final close,
// the partial file is removed.
func writeRecordsFile(path string, format outputFormat, records []record.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	return writeRecords(f, format, records)
}

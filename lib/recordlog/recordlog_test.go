// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recordlog

import (
	"io"
	"path/filepath"
	"sync"
	"testing"
)

type sample struct {
	EventID string         `cbor:"event_id"`
	Sender  string         `cbor:"sender"`
	Prefs   map[string]any `cbor:"prefs,omitempty"`
}

func TestCompressionForPath(t *testing.T) {
	tests := map[string]Compression{
		"records.cbor":     CompressionNone,
		"records":          CompressionNone,
		"records.cbor.zst": CompressionZstd,
		"records.zstd":     CompressionZstd,
		"records.cbor.lz4": CompressionLZ4,
	}
	for path, want := range tests {
		if got := CompressionForPath(path); got != want {
			t.Errorf("CompressionForPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestRoundTripEachCompression(t *testing.T) {
	for _, name := range []string{"records.cbor", "records.cbor.zst", "records.cbor.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			writer, err := Create(path)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			written := []sample{
				{EventID: "$1", Sender: "@alice:example.org", Prefs: map[string]any{"color": "#ff0000"}},
				{EventID: "$2", Sender: "@bob:example.org"},
			}
			for _, record := range written {
				if err := writer.Append(record); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			records, err := ReadAll[sample](path)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if len(records) != len(written) {
				t.Fatalf("read %d records, want %d", len(records), len(written))
			}
			for index := range written {
				if records[index].EventID != written[index].EventID || records[index].Sender != written[index].Sender {
					t.Errorf("record %d = %+v, want %+v", index, records[index], written[index])
				}
			}
			if records[0].Prefs["color"] != "#ff0000" {
				t.Errorf("prefs = %v", records[0].Prefs)
			}
		})
	}
}

func TestAppendAfterClose(t *testing.T) {
	writer, err := Create(filepath.Join(t.TempDir(), "records.cbor"))
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	if err := writer.Append(sample{EventID: "$1"}); err == nil {
		t.Fatal("expected error appending to a closed writer")
	}
	if err := writer.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestConcurrentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.cbor.zst")
	writer, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	var group sync.WaitGroup
	for index := range 20 {
		group.Add(1)
		go func() {
			defer group.Done()
			if err := writer.Append(sample{EventID: "$" + string(rune('a'+index))}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	group.Wait()
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	reader, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()
	count := 0
	for {
		_, err := reader.NextRaw()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextRaw: %v", err)
		}
		count++
	}
	if count != 20 {
		t.Errorf("read %d records, want 20", count)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package recordlog writes and reads a stream of CBOR items in a single
// file, optionally compressed. The timeline observer's record sink
// writes enrichment records here and `userprefs tail --file` reads them
// back.
//
// The compression is chosen by file extension: ".zst" for zstd, ".lz4"
// for the LZ4 frame format, anything else for uncompressed CBOR. A file
// is created fresh on open; records are never appended to an existing
// file.
package recordlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/userprefs/lib/codec"
)

// Compression identifies the stream compression of a record log.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (compression Compression) String() string {
	switch compression {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", compression)
	}
}

// CompressionForPath returns the compression implied by path's
// extension.
func CompressionForPath(path string) Compression {
	switch filepath.Ext(path) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// Writer appends CBOR records to a log file. Safe for concurrent use.
type Writer struct {
	mu         sync.Mutex
	file       *os.File
	buffered   *bufio.Writer
	compressor io.WriteCloser
	encoder    *codec.Encoder
	closed     bool
}

// Create creates (or truncates) the log at path.
func Create(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recordlog: creating %s: %w", path, err)
	}

	writer := &Writer{file: file, buffered: bufio.NewWriter(file)}
	var sink io.Writer = writer.buffered

	switch CompressionForPath(path) {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(writer.buffered, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("recordlog: creating zstd encoder: %w", err)
		}
		writer.compressor = encoder
		sink = encoder
	case CompressionLZ4:
		encoder := lz4.NewWriter(writer.buffered)
		writer.compressor = encoder
		sink = encoder
	}

	writer.encoder = codec.NewEncoder(sink)
	return writer, nil
}

// Append encodes record and flushes it through to the file so a
// concurrent reader sees complete records.
func (w *Writer) Append(record any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("recordlog: append after close")
	}
	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("recordlog: encoding record: %w", err)
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	return nil
}

func (w *Writer) flushLocked() error {
	if flusher, ok := w.compressor.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return fmt.Errorf("recordlog: flushing compressor: %w", err)
		}
	}
	if err := w.buffered.Flush(); err != nil {
		return fmt.Errorf("recordlog: flushing file: %w", err)
	}
	return nil
}

// Close finishes the compressed stream and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	if w.compressor != nil {
		if err := w.compressor.Close(); err != nil {
			firstErr = fmt.Errorf("recordlog: closing compressor: %w", err)
		}
	}
	if err := w.buffered.Flush(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("recordlog: flushing file: %w", err)
	}
	if err := w.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("recordlog: closing file: %w", err)
	}
	return firstErr
}

// Reader decodes records from a log file.
type Reader struct {
	file    *os.File
	release func()
	decoder *codec.Decoder
}

// Open opens the log at path for reading.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recordlog: opening %s: %w", path, err)
	}

	reader := &Reader{file: file, release: func() {}}
	var source io.Reader = bufio.NewReader(file)

	switch CompressionForPath(path) {
	case CompressionZstd:
		decoder, err := zstd.NewReader(source)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("recordlog: creating zstd decoder: %w", err)
		}
		reader.release = decoder.Close
		source = decoder
	case CompressionLZ4:
		source = lz4.NewReader(source)
	}

	reader.decoder = codec.NewDecoder(source)
	return reader, nil
}

// Next decodes the next record into v. It returns io.EOF after the last
// complete record.
func (r *Reader) Next(v any) error {
	err := r.decoder.Decode(v)
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("recordlog: decoding record: %w", err)
	}
	return nil
}

// NextRaw returns the next record undecoded.
func (r *Reader) NextRaw() (codec.RawMessage, error) {
	var raw codec.RawMessage
	if err := r.Next(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Close releases the decoder and the file.
func (r *Reader) Close() error {
	r.release()
	return r.file.Close()
}

// ReadAll decodes every record in the log at path.
func ReadAll[T any](path string) ([]T, error) {
	reader, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var records []T
	for {
		var record T
		err := reader.Next(&record)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

// Package storage delivers finished results: to a local output directory,
// to object storage, or both.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"docfields/internal/domain"
	"docfields/internal/port"
)

// Stem returns filename without directory and extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EncodeResult renders res as indented JSON, keeping non-ASCII text and
// HTML characters literal.
func EncodeResult(res *domain.StructuredResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return buf.Bytes(), nil
}

// LocalSink writes <stem>_raw.txt and <stem>_structured.json into a directory.
type LocalSink struct {
	dir       string
	writeRaw  bool
	writeJSON bool
}

// NewLocalSink creates a LocalSink. The directory is created on first write.
func NewLocalSink(dir string, writeRaw, writeJSON bool) *LocalSink {
	return &LocalSink{dir: dir, writeRaw: writeRaw, writeJSON: writeJSON}
}

func (s *LocalSink) Write(_ context.Context, res *domain.StructuredResult) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	stem := Stem(res.Filename)
	if s.writeRaw {
		if err := os.WriteFile(filepath.Join(s.dir, stem+"_raw.txt"), []byte(res.RawText), 0o644); err != nil {
			return fmt.Errorf("writing raw text: %w", err)
		}
	}
	if s.writeJSON {
		data, err := EncodeResult(res)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(s.dir, stem+"_structured.json"), data, 0o644); err != nil {
			return fmt.Errorf("writing structured json: %w", err)
		}
	}
	return nil
}

// ObjectSink uploads <prefix>/<stem>_structured.json to object storage.
type ObjectSink struct {
	store  port.ObjectStorage
	bucket string
	prefix string
}

// NewObjectSink creates an ObjectSink.
func NewObjectSink(store port.ObjectStorage, bucket, prefix string) *ObjectSink {
	return &ObjectSink{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key a result is stored under.
func (s *ObjectSink) Key(res *domain.StructuredResult) string {
	return path.Join(s.prefix, Stem(res.Filename)+"_structured.json")
}

func (s *ObjectSink) Write(ctx context.Context, res *domain.StructuredResult) error {
	data, err := EncodeResult(res)
	if err != nil {
		return err
	}
	_, err = s.store.Upload(ctx, port.UploadInput{
		Bucket:      s.bucket,
		Key:         s.Key(res),
		Body:        bytes.NewReader(data),
		ContentType: "application/json",
		Size:        int64(len(data)),
	})
	if err != nil {
		return fmt.Errorf("uploading result: %w", err)
	}
	return nil
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []port.ResultSink

func (m MultiSink) Write(ctx context.Context, res *domain.StructuredResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"docfields/internal/domain"
	"docfields/internal/logger"
	"docfields/internal/port"
)

// CollectInputs expands root into the document files to process. A file is
// returned as-is; a directory is scanned for files whose extension is in
// exts (case-insensitive, with or without the dot). Results are sorted.
func CollectInputs(root string, exts []string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("service.CollectInputs: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		allowed[e] = true
	}

	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(path))] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service.CollectInputs: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// BatchConfig holds settings for the batch runner.
type BatchConfig struct {
	Concurrency int
	// DocTimeout bounds a single document once it has started.
	DocTimeout time.Duration
}

// BatchItem is the outcome of one document.
type BatchItem struct {
	Path    string
	Output  *RunOutput
	Err     error
	Skipped bool
}

// BatchReport collects the outcome of a batch in input order.
type BatchReport struct {
	Items     []BatchItem
	Succeeded int
	Failed    int
	Skipped   int
}

// Results returns the structured results of the successful documents.
func (r *BatchReport) Results() []*domain.StructuredResult {
	out := make([]*domain.StructuredResult, 0, r.Succeeded)
	for i := range r.Items {
		if r.Items[i].Output != nil && r.Items[i].Err == nil {
			out = append(out, r.Items[i].Output.Result)
		}
	}
	return out
}

// BatchRunner processes many documents concurrently. A failing document
// never stops the others.
type BatchRunner struct {
	pipeline *Pipeline
	sink     port.ResultSink
	cfg      BatchConfig
	logger   *zap.Logger
}

// NewBatchRunner creates a new BatchRunner. sink may be nil.
func NewBatchRunner(pipeline *Pipeline, sink port.ResultSink, cfg BatchConfig, log *zap.Logger) *BatchRunner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.DocTimeout <= 0 {
		cfg.DocTimeout = 5 * time.Minute
	}
	return &BatchRunner{pipeline: pipeline, sink: sink, cfg: cfg, logger: logger.OrNop(log)}
}

// Run processes paths with the settings of base (profile, fields,
// threshold). When ctx is canceled no new documents are started; documents
// already running finish and the rest are reported as skipped.
func (r *BatchRunner) Run(ctx context.Context, paths []string, base RunInput) *BatchReport {
	report := &BatchReport{Items: make([]BatchItem, len(paths))}
	for i, p := range paths {
		report.Items[i] = BatchItem{Path: p, Skipped: true}
	}

	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup

	r.logger.Info("batch started",
		zap.Int("documents", len(paths)),
		zap.Int("concurrency", r.cfg.Concurrency))

issue:
	for i := range paths {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break issue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			// In-flight documents finish even after the batch is canceled.
			docCtx, cancel := context.WithTimeout(context.Background(), r.cfg.DocTimeout)
			defer cancel()

			out, err := r.processOne(docCtx, paths[i], base)
			report.Items[i] = BatchItem{Path: paths[i], Output: out, Err: err}
		}(i)
	}

	if ctx.Err() != nil {
		r.logger.Warn("batch canceled, waiting for in-flight documents")
	}
	wg.Wait()

	for i := range report.Items {
		it := &report.Items[i]
		switch {
		case it.Skipped:
			report.Skipped++
		case it.Err != nil:
			report.Failed++
			r.logger.Error("document failed",
				zap.String("path", it.Path),
				zap.Bool("decode_error", errors.Is(it.Err, domain.ErrInputDecode)),
				zap.Error(it.Err))
		default:
			report.Succeeded++
		}
	}

	r.logger.Info("batch finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped))
	return report
}

func (r *BatchRunner) processOne(ctx context.Context, path string, base RunInput) (*RunOutput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewInputDecodeError(path, err)
	}

	in := base
	in.Filename = filepath.Base(path)
	in.Content = content
	in.OCR = nil

	out, err := r.pipeline.Run(ctx, &in)
	if err != nil {
		return nil, err
	}
	if r.sink != nil {
		if err := r.sink.Write(ctx, out.Result); err != nil {
			return out, fmt.Errorf("writing results for %s: %w", in.Filename, err)
		}
	}
	return out, nil
}

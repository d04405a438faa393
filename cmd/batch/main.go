// Command batch extracts fields from a document file or a directory of
// documents and writes per-document results plus a review list.
// Usage: go run ./cmd/batch [flags] <file-or-dir>
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"docfields/internal/config"
	"docfields/internal/csvexport"
	"docfields/internal/domain"
	"docfields/internal/fieldspec"
	"docfields/internal/logger"
	_ "docfields/internal/ocr/remote"
	_ "docfields/internal/ocr/tesseract"
	"docfields/internal/service"
	"docfields/internal/storage"
	s3storage "docfields/internal/storage/s3"
)

const reviewListName = "validation_list"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var (
		outDir      = flag.String("o", cfg.Batch.OutputDir, "output directory")
		profile     = flag.String("profile", "", "profile name (default from config)")
		fieldsFile  = flag.String("fields", "", "profile file (YAML or JSON) to use instead of a named profile")
		recursive   = flag.Bool("recursive", cfg.Batch.Recursive, "scan subdirectories")
		exts        = flag.String("ext", "", "comma-separated extensions (default from config)")
		adaptive    = flag.Bool("adaptive", false, "generate fields from each document instead of using a profile")
		threshold   = flag.Float64("threshold", -1, "review threshold 0..100 (default from profile or config)")
		concurrency = flag.Int("concurrency", cfg.Batch.Concurrency, "documents processed in parallel")
		xlsx        = flag.Bool("xlsx", cfg.Batch.WriteXLSX, "also write the review list as XLSX")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: batch [flags] <file-or-dir>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	extensions := cfg.Batch.Extensions
	if *exts != "" {
		extensions = config.SplitList(*exts)
	}
	paths, err := service.CollectInputs(flag.Arg(0), extensions, *recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no input files with extensions %v under %s", extensions, flag.Arg(0))
	}

	base := service.RunInput{Profile: *profile, Adaptive: *adaptive}
	if *fieldsFile != "" {
		p, err := fieldspec.LoadProfileFile(*fieldsFile)
		if err != nil {
			return err
		}
		base.ProfileSpec = p
	}
	if *threshold >= 0 {
		base.Threshold = threshold
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	sinks := storage.MultiSink{storage.NewLocalSink(*outDir, cfg.Batch.WriteRaw, cfg.Batch.WriteJSON)}
	if cfg.S3.Enabled {
		s3Client, err := s3storage.NewClient(ctx, &cfg.S3)
		if err != nil {
			return fmt.Errorf("initializing S3 client: %w", err)
		}
		sinks = append(sinks, storage.NewObjectSink(s3Client, s3Client.Bucket(), cfg.S3.Prefix))
	}

	pipeline, err := service.NewPipelineFromConfig(cfg, zl)
	if err != nil {
		return err
	}
	runner := service.NewBatchRunner(pipeline, sinks, service.BatchConfig{Concurrency: *concurrency}, zl)

	report := runner.Run(ctx, paths, base)

	if err := writeReviewList(*outDir, report.Results(), *xlsx, zl); err != nil {
		return err
	}

	for _, it := range report.Items {
		if it.Err != nil {
			fmt.Fprintf(os.Stderr, "FAILED %s: %v\n", it.Path, it.Err)
		}
	}
	fmt.Printf("processed %d documents: %d succeeded, %d failed, %d skipped\n",
		len(paths), report.Succeeded, report.Failed, report.Skipped)

	if report.Failed > 0 {
		return fmt.Errorf("%d documents failed", report.Failed)
	}
	return nil
}

func writeReviewList(dir string, results []*domain.StructuredResult, xlsx bool, zl *zap.Logger) error {
	if !csvexport.HasRows(results) {
		zl.Info("no fields need review")
		return nil
	}

	csvPath := filepath.Join(dir, reviewListName+".csv")
	if err := writeFile(csvPath, func(f *os.File) error { return csvexport.WriteCSV(f, results) }); err != nil {
		return err
	}
	zl.Info("review list written", zap.String("path", csvPath))

	if xlsx {
		xlsxPath := filepath.Join(dir, reviewListName+".xlsx")
		if err := writeFile(xlsxPath, func(f *os.File) error { return csvexport.WriteXLSX(f, results) }); err != nil {
			return err
		}
		zl.Info("review list written", zap.String("path", xlsxPath))
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

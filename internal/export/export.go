// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export drives a whole-library export: it lists items and their
// attachments, downloads each stored file, and fans the conversions out
// to a pool of workers. Each worker owns its own engine handle, so the
// conversion engine is never shared across goroutines.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/zotero-md/internal/convert"
	"github.com/pdiddy/zotero-md/internal/zotero"
	"github.com/pdiddy/zotero-md/pkg/types"
)

// Library abstracts the Zotero client so tests can substitute fakes.
type Library interface {
	ListTopItems(ctx context.Context) ([]zotero.Item, error)
	ChildAttachments(ctx context.Context, parent zotero.Item) ([]types.Attachment, error)
	DownloadFile(ctx context.Context, att types.Attachment, destDir string) (string, error)
}

// Recorder persists conversion results. May be nil when no state store
// is attached.
type Recorder interface {
	Record(ctx context.Context, att types.Attachment, res types.ConversionResult) error
}

// Report holds the outcome of a library export run.
type Report struct {
	Converted int
	Skipped   int
	DryRun    int
	Failed    int
}

// Total returns the total number of attachments processed.
func (r Report) Total() int {
	return r.Converted + r.Skipped + r.DryRun + r.Failed
}

// HasFailures reports whether any attachments failed.
func (r Report) HasFailures() bool {
	return r.Failed > 0
}

func (r *Report) add(other Report) {
	r.Converted += other.Converted
	r.Skipped += other.Skipped
	r.DryRun += other.DryRun
	r.Failed += other.Failed
}

// syncWriter serializes status lines from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Run exports every stored attachment in the library to Markdown under
// cfg.Export.OutputDir and returns a summary. Per-attachment failures
// (download errors, missing files, engine errors) are reported on w and
// counted, never propagated: only a failure to enumerate the library
// aborts the run.
func Run(ctx context.Context, lib Library, factory convert.Factory, cfg types.PipelineConfig, rec Recorder, w io.Writer) (Report, error) {
	items, err := lib.ListTopItems(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing library items: %w", err)
	}

	var attachments []types.Attachment
	for _, item := range items {
		atts, err := lib.ChildAttachments(ctx, item)
		if err != nil {
			return Report{}, fmt.Errorf("listing attachments: %w", err)
		}
		attachments = append(attachments, atts...)
	}

	fmt.Fprintf(w, "Exporting %d attachment(s) from %d item(s)\n", len(attachments), len(items))

	workers := cfg.Export.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(attachments) && len(attachments) > 0 {
		workers = len(attachments)
	}

	out := &syncWriter{w: w}
	jobs := make(chan types.Attachment)
	reports := make(chan Report, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports <- runWorker(ctx, lib, factory, cfg, rec, jobs, out)
		}()
	}

	for _, att := range attachments {
		jobs <- att
	}
	close(jobs)
	wg.Wait()
	close(reports)

	var report Report
	for r := range reports {
		report.add(r)
	}

	fmt.Fprintf(w, "\nExport summary: %d converted, %d skipped, %d dry-run, %d failed (total: %d)\n",
		report.Converted, report.Skipped, report.DryRun, report.Failed, report.Total())
	return report, nil
}

// runWorker processes attachments from jobs until the channel closes.
// The convert.Handle lives for the worker's whole lifetime so the engine
// is built once and reused across attachments.
func runWorker(ctx context.Context, lib Library, factory convert.Factory, cfg types.PipelineConfig, rec Recorder, jobs <-chan types.Attachment, w io.Writer) Report {
	var report Report
	handle := convert.NewHandle(factory)

	for att := range jobs {
		report.add(exportOne(ctx, lib, handle, cfg, rec, att, w))
	}
	return report
}

// exportOne downloads and converts a single attachment, absorbing its
// failures into the report.
func exportOne(ctx context.Context, lib Library, handle *convert.Handle, cfg types.PipelineConfig, rec Recorder, att types.Attachment, w io.Writer) Report {
	var report Report

	var filePath string
	if cfg.Export.DryRun {
		// No download needed to report the intended action.
		filePath = zotero.LocalPath(att, cfg.Export.FilesDir)
	} else {
		var err error
		filePath, err = lib.DownloadFile(ctx, att, cfg.Export.FilesDir)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", att.Key, err)
			report.Failed++
			return report
		}
	}

	res, err := convert.ConvertAttachment(handle, att, filePath, cfg.Export, w)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", att.Key, err)
		report.Failed++
		return report
	}

	switch res.Status {
	case types.StatusConverted:
		report.Converted++
		if err := writeSidecar(att, res); err != nil {
			fmt.Fprintf(w, "  warning: sidecar for %s: %v\n", att.Key, err)
		}
	case types.StatusSkipped:
		report.Skipped++
	case types.StatusDryRun:
		report.DryRun++
	}

	if rec != nil {
		if err := rec.Record(ctx, att, res); err != nil {
			fmt.Fprintf(w, "  warning: recording %s: %v\n", att.Key, err)
		}
	}
	return report
}

// sidecar is the YAML metadata written next to each converted file.
type sidecar struct {
	Attachment types.Attachment       `yaml:"attachment"`
	Result     types.ConversionResult `yaml:"result"`
	ExportedAt string                 `yaml:"exported_at"`
}

// writeSidecar records the attachment metadata next to the Markdown
// output, replacing the .md extension with .yaml.
func writeSidecar(att types.Attachment, res types.ConversionResult) error {
	path := res.Output[:len(res.Output)-len(".md")] + ".yaml"
	data, err := yaml.Marshal(sidecar{
		Attachment: att,
		Result:     res,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshaling sidecar: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

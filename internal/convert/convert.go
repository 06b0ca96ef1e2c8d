// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded attachment files into Markdown through
// an opaque conversion engine, applying the output-path and
// skip/overwrite/dry-run policy for the export.
package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/zotero-md/pkg/types"
)

// Converter transforms a local document file into Markdown text. The
// production implementation is DoclingConverter; tests substitute fakes.
type Converter interface {
	// Convert reads the document at path and returns the Markdown content.
	Convert(path string) (string, error)
}

// Factory builds a Converter for a set of engine options. Construction is
// expensive, so handles cache the result per fingerprint.
type Factory func(opts Options) (Converter, error)

// Handle caches one converter instance for a single worker, keyed by the
// option fingerprint. Handles must not be shared across goroutines: the
// underlying engine is not safe for concurrent use, and keeping one
// handle per worker removes the need for locking.
type Handle struct {
	factory Factory
	key     string
	conv    Converter
}

// NewHandle returns an empty handle that builds converters on demand
// through factory.
func NewHandle(factory Factory) *Handle {
	return &Handle{factory: factory}
}

// Converter returns the cached converter when the option fingerprint
// matches the last build, or constructs and caches a replacement.
func (h *Handle) Converter(opts Options) (Converter, error) {
	key := opts.Fingerprint()
	if h.conv == nil || h.key != key {
		c, err := h.factory(opts)
		if err != nil {
			return nil, err
		}
		h.conv = c
		h.key = key
	}
	return h.conv, nil
}

// ConvertAttachment converts a single downloaded attachment to Markdown,
// writing the result under cfg.OutputDir and returning the outcome.
//
// Policy, in order: an existing output with overwrite disabled is skipped
// before any other work; a dry run reports the target path without
// touching the filesystem or the engine. A missing source file is the
// only error that crosses this boundary, since it signals an upstream
// download failure the caller must see. Engine and write failures are
// logged to w and absorbed as a skipped result so one bad attachment
// cannot abort a batch.
func ConvertAttachment(h *Handle, att types.Attachment, filePath string, cfg types.ExportConfig, w io.Writer) (types.ConversionResult, error) {
	outPath := OutputPath(att, cfg.OutputDir)
	result := types.ConversionResult{Source: filePath, Output: outPath}

	if _, err := os.Stat(outPath); err == nil && !cfg.Overwrite {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", outPath)
		result.Status = types.StatusSkipped
		return result, nil
	}

	if cfg.DryRun {
		fmt.Fprintf(w, "dry-run: would write %s\n", outPath)
		result.Status = types.StatusDryRun
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", att.Key, err)
		result.Status = types.StatusSkipped
		return result, nil
	}

	if _, err := os.Stat(filePath); err != nil {
		return result, fmt.Errorf("file not found for conversion: %s: %w", filePath, os.ErrNotExist)
	}

	conv, err := h.Converter(OptionsFromConfig(cfg))
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", att.Key, err)
		result.Status = types.StatusSkipped
		return result, nil
	}

	markdown, err := conv.Convert(filePath)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", att.Key, err)
		result.Status = types.StatusSkipped
		return result, nil
	}

	if err := os.WriteFile(outPath, []byte(markdown), 0o644); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", att.Key, err)
		result.Status = types.StatusSkipped
		return result, nil
	}

	fmt.Fprintf(w, "converted: %s\n", outPath)
	result.Status = types.StatusConverted
	return result, nil
}

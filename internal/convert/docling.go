// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/pdiddy/zotero-md/internal/container"
	"github.com/pdiddy/zotero-md/pkg/types"
)

const imageDocling = "docling:latest"

// PageBreakPlaceholder is inserted between source pages so the rendered
// Markdown stays a single self-contained file.
const PageBreakPlaceholder = "--- Page Break ---"

// Options carries the engine tuning knobs that shape a converter
// instance. Thread count is a per-run hint and deliberately not part of
// the cache fingerprint.
type Options struct {
	ForceFullPageOCR     bool
	DoPictureDescription bool
	ImageResolutionScale float64
	NumThreads           int
	Device               types.AcceleratorDevice
}

// OptionsFromConfig extracts engine options from the export settings,
// applying defaults for unset knobs.
func OptionsFromConfig(cfg types.ExportConfig) Options {
	o := Options{
		ForceFullPageOCR:     cfg.ForceFullPageOCR,
		DoPictureDescription: cfg.DoPictureDescription,
		ImageResolutionScale: cfg.ImageResolutionScale,
		NumThreads:           cfg.NumThreads,
		Device:               cfg.Device,
	}
	if o.ImageResolutionScale <= 0 {
		o.ImageResolutionScale = 2.0
	}
	if o.NumThreads <= 0 {
		o.NumThreads = 4
	}
	if o.Device == "" {
		o.Device = types.DeviceAuto
	}
	return o
}

// Fingerprint returns the cache key for a converter built from these
// options. Handles are rebuilt whenever the fingerprint changes.
func (o Options) Fingerprint() string {
	return fmt.Sprintf("ocr=%t picdesc=%t scale=%.2f device=%s",
		o.ForceFullPageOCR, o.DoPictureDescription, o.ImageResolutionScale, o.Device)
}

// EngineError reports that the conversion engine failed to produce a
// document for a file.
type EngineError struct {
	Path   string
	Status string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("conversion failed for %s: %s", e.Path, e.Status)
}

// DoclingConverter renders documents to Markdown by piping them through
// the docling container image. The engine is treated as a black box: it
// reads the document on stdin and writes Markdown to stdout.
type DoclingConverter struct {
	runtime container.Runtime
	opts    Options
}

// NewDoclingConverter creates a converter bound to the given options. It
// verifies that the docling image exists locally before returning, since
// a missing image would otherwise fail once per attachment.
func NewDoclingConverter(rt container.Runtime, opts Options) (*DoclingConverter, error) {
	if err := rt.ImageExists(imageDocling); err != nil {
		return nil, fmt.Errorf("docling image not available in %s: %w", rt.Name(), err)
	}
	return &DoclingConverter{runtime: rt, opts: opts}, nil
}

// Convert reads the document at path, pipes it through the docling
// container, and returns the rendered Markdown. Engine failures are
// reported as *EngineError.
func (d *DoclingConverter) Convert(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := d.runtime.Run(imageDocling, d.engineArgs(), f, &out); err != nil {
		return "", &EngineError{Path: path, Status: err.Error()}
	}

	if out.Len() == 0 {
		return "", &EngineError{Path: path, Status: "no document produced"}
	}

	return out.String(), nil
}

// engineArgs translates the options into docling CLI flags. Images are
// always embedded and page breaks marked so the output needs no sidecar
// files.
func (d *DoclingConverter) engineArgs() []string {
	args := []string{
		"--from", "pdf",
		"--to", "md",
		"--image-export-mode", "embedded",
		"--md-page-break-placeholder", PageBreakPlaceholder,
		"--image-scale", strconv.FormatFloat(d.opts.ImageResolutionScale, 'f', -1, 64),
		"--num-threads", strconv.Itoa(d.opts.NumThreads),
		"--device", string(d.opts.Device),
	}
	if d.opts.ForceFullPageOCR {
		args = append(args, "--force-ocr")
	}
	if d.opts.DoPictureDescription {
		args = append(args, "--enrich-picture-description")
	}
	return args
}

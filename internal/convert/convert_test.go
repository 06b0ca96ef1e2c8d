// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdiddy/zotero-md/pkg/types"
)

// fakeConverter implements Converter for testing. It returns canned
// Markdown or an error, depending on configuration.
type fakeConverter struct {
	output string
	err    error
	calls  int
}

func (f *fakeConverter) Convert(path string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

// fakeFactory counts constructions and hands out fresh fakeConverters.
type fakeFactory struct {
	builds  int
	output  string
	err     error // construction failure
	convErr error // per-conversion failure
}

func (f *fakeFactory) build(opts Options) (Converter, error) {
	f.builds++
	if f.err != nil {
		return nil, f.err
	}
	return &fakeConverter{output: f.output, err: f.convErr}, nil
}

// setupSource creates a temporary attachment file and returns its path
// and a separate output directory.
func setupSource(t *testing.T) (srcPath, outDir string) {
	t.Helper()
	tmp := t.TempDir()
	srcPath = filepath.Join(tmp, "files", "abcd1234.pdf")
	if err := os.MkdirAll(filepath.Dir(srcPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(srcPath, []byte("fake pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	return srcPath, filepath.Join(tmp, "markdown")
}

var testAttachment = types.Attachment{
	Key:         "A1",
	Title:       "My Paper",
	ParentKey:   "P1",
	ParentTitle: "Thesis",
}

func TestConvertAttachment(t *testing.T) {
	tests := []struct {
		name       string
		cfg        types.ExportConfig
		factory    *fakeFactory
		preCreate  bool // create output MD before running
		wantStatus types.ConversionStatus
		wantLog    string
	}{
		{
			name:       "successful conversion",
			factory:    &fakeFactory{output: "# Title\n\nContent here."},
			wantStatus: types.StatusConverted,
			wantLog:    "converted:",
		},
		{
			name:       "skip existing output",
			factory:    &fakeFactory{output: "should not be called"},
			preCreate:  true,
			wantStatus: types.StatusSkipped,
			wantLog:    "skipped:",
		},
		{
			name:       "overwrite existing output",
			cfg:        types.ExportConfig{Overwrite: true},
			factory:    &fakeFactory{output: "# Fresh"},
			preCreate:  true,
			wantStatus: types.StatusConverted,
			wantLog:    "converted:",
		},
		{
			name:       "dry run touches nothing",
			cfg:        types.ExportConfig{DryRun: true},
			factory:    &fakeFactory{output: "should not be called"},
			wantStatus: types.StatusDryRun,
			wantLog:    "dry-run:",
		},
		{
			name:       "engine construction failure absorbed as skipped",
			factory:    &fakeFactory{err: errors.New("image not available")},
			wantStatus: types.StatusSkipped,
			wantLog:    "failed:",
		},
		{
			name:       "engine failure absorbed as skipped",
			factory:    &fakeFactory{convErr: errors.New("container crashed")},
			wantStatus: types.StatusSkipped,
			wantLog:    "failed:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srcPath, outDir := setupSource(t)
			cfg := tt.cfg
			cfg.OutputDir = outDir

			outPath := OutputPath(testAttachment, outDir)
			if tt.preCreate {
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(outPath, []byte("existing"), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			var log bytes.Buffer
			res, err := ConvertAttachment(NewHandle(tt.factory.build), testAttachment, srcPath, cfg, &log)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if res.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", res.Status, tt.wantStatus)
			}
			if res.Source != srcPath {
				t.Errorf("source = %q, want %q", res.Source, srcPath)
			}
			if res.Output != outPath {
				t.Errorf("output = %q, want %q", res.Output, outPath)
			}
			if !strings.Contains(log.String(), tt.wantLog) {
				t.Errorf("log output %q does not contain %q", log.String(), tt.wantLog)
			}

			data, readErr := os.ReadFile(outPath)
			switch tt.wantStatus {
			case types.StatusConverted:
				if readErr != nil {
					t.Fatalf("reading output: %v", readErr)
				}
				if string(data) != tt.factory.output {
					t.Errorf("output content = %q, want %q", data, tt.factory.output)
				}
			case types.StatusSkipped:
				if tt.preCreate && string(data) != "existing" {
					t.Errorf("pre-existing output was modified: %q", data)
				}
			case types.StatusDryRun:
				if readErr == nil {
					t.Error("dry run should not create an output file")
				}
			}
		})
	}
}

func TestConvertAttachment_SecondCallSkips(t *testing.T) {
	srcPath, outDir := setupSource(t)
	cfg := types.ExportConfig{OutputDir: outDir}
	factory := &fakeFactory{output: "# Once"}
	h := NewHandle(factory.build)

	var log bytes.Buffer
	first, err := ConvertAttachment(h, testAttachment, srcPath, cfg, &log)
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != types.StatusConverted {
		t.Fatalf("first status = %q, want converted", first.Status)
	}

	second, err := ConvertAttachment(h, testAttachment, srcPath, cfg, &log)
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != types.StatusSkipped {
		t.Errorf("second status = %q, want skipped", second.Status)
	}

	data, err := os.ReadFile(first.Output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# Once" {
		t.Errorf("output changed on second call: %q", data)
	}
}

func TestConvertAttachment_MissingSourcePropagates(t *testing.T) {
	outDir := t.TempDir()
	cfg := types.ExportConfig{OutputDir: outDir}
	factory := &fakeFactory{output: "should not be called"}

	missing := filepath.Join(outDir, "nope.pdf")
	var log bytes.Buffer
	res, err := ConvertAttachment(NewHandle(factory.build), testAttachment, missing, cfg, &log)
	if err == nil {
		t.Fatal("expected error for missing source file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap os.ErrNotExist, got: %v", err)
	}
	if !strings.Contains(err.Error(), missing) {
		t.Errorf("error should name the missing path, got: %v", err)
	}
	if _, statErr := os.Stat(res.Output); statErr == nil {
		t.Error("no output file should be created for a missing source")
	}
	if factory.builds != 0 {
		t.Errorf("converter should not be built, got %d builds", factory.builds)
	}
}

func TestConvertAttachment_DryRunBeforeMissingCheck(t *testing.T) {
	outDir := t.TempDir()
	cfg := types.ExportConfig{OutputDir: outDir, DryRun: true}
	factory := &fakeFactory{}

	var log bytes.Buffer
	res, err := ConvertAttachment(NewHandle(factory.build), testAttachment, filepath.Join(outDir, "nope.pdf"), cfg, &log)
	if err != nil {
		t.Fatalf("dry run should not error: %v", err)
	}
	if res.Status != types.StatusDryRun {
		t.Errorf("status = %q, want dry-run", res.Status)
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("dry run created %d entries under output dir", len(entries))
	}
}

func TestHandle_ReusesConverterForSameFingerprint(t *testing.T) {
	factory := &fakeFactory{output: "# md"}
	h := NewHandle(factory.build)

	opts := OptionsFromConfig(types.ExportConfig{})
	first, err := h.Converter(opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.Converter(opts)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("same fingerprint should return the cached converter")
	}
	if factory.builds != 1 {
		t.Errorf("builds = %d, want 1", factory.builds)
	}
}

func TestHandle_RebuildsOnFingerprintChange(t *testing.T) {
	factory := &fakeFactory{output: "# md"}
	h := NewHandle(factory.build)

	if _, err := h.Converter(OptionsFromConfig(types.ExportConfig{})); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Converter(OptionsFromConfig(types.ExportConfig{ForceFullPageOCR: true})); err != nil {
		t.Fatal(err)
	}
	if factory.builds != 2 {
		t.Errorf("builds = %d, want 2", factory.builds)
	}

	// Thread count is a run hint, not part of the fingerprint.
	if _, err := h.Converter(OptionsFromConfig(types.ExportConfig{ForceFullPageOCR: true, NumThreads: 8})); err != nil {
		t.Fatal(err)
	}
	if factory.builds != 2 {
		t.Errorf("builds after thread-count change = %d, want 2", factory.builds)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data records and stage configurations shared
// across the zotero-md pipeline.
package types

// ConversionStatus indicates the outcome of converting one attachment.
type ConversionStatus string

const (
	// StatusConverted means Markdown was rendered and written.
	StatusConverted ConversionStatus = "converted"
	// StatusSkipped means no output was produced: either the output
	// already existed with overwrite disabled, or a per-item failure
	// was absorbed.
	StatusSkipped ConversionStatus = "skipped"
	// StatusDryRun means the run was simulated and nothing was written.
	StatusDryRun ConversionStatus = "dry-run"
)

// Attachment identifies one file managed by the Zotero library. Fields
// mirror the API item data; records are read-only once fetched.
type Attachment struct {
	// Key is the attachment item key (e.g. "ABCD1234"). Never empty.
	Key string `json:"key" yaml:"key"`

	// Title is the human-readable attachment title. May be empty.
	Title string `json:"title" yaml:"title"`

	// ParentKey is the key of the parent bibliographic item, or empty
	// for a standalone attachment.
	ParentKey string `json:"parent_key,omitempty" yaml:"parent_key,omitempty"`

	// ParentTitle is the title of the parent item, or empty.
	ParentTitle string `json:"parent_title,omitempty" yaml:"parent_title,omitempty"`

	// ContentType is the MIME type reported by the library
	// (e.g. "application/pdf").
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`

	// Filename is the stored filename reported by the library.
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// ConversionResult records the outcome of one conversion attempt.
// One result is created per (attachment, local file) pair and never
// mutated afterwards.
type ConversionResult struct {
	// Source is the local path of the downloaded attachment file.
	Source string `json:"source" yaml:"source"`

	// Output is the Markdown path the conversion targeted, whether or
	// not it was written.
	Output string `json:"output" yaml:"output"`

	// Status is one of converted, skipped, or dry-run.
	Status ConversionStatus `json:"status" yaml:"status"`
}

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "zotero-md/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LibraryType selects between a personal and a group Zotero library.
type LibraryType string

const (
	LibraryUser  LibraryType = "user"
	LibraryGroup LibraryType = "group"
)

// LibraryConfig holds settings for the Zotero Web API client.
type LibraryConfig struct {
	HTTPConfig `yaml:",inline"`

	// LibraryType is "user" or "group".
	LibraryType LibraryType `json:"library_type" yaml:"library_type"`

	// LibraryID is the numeric user or group identifier.
	LibraryID string `json:"library_id" yaml:"library_id"`

	// APIKey authenticates against the Zotero Web API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// PageSize is the number of items requested per page (default 50).
	PageSize int `json:"page_size" yaml:"page_size"`
}

// AcceleratorDevice hints which compute backend the conversion engine
// should use.
type AcceleratorDevice string

const (
	DeviceAuto AcceleratorDevice = "auto"
	DeviceCPU  AcceleratorDevice = "cpu"
	DeviceCUDA AcceleratorDevice = "cuda"
	DeviceMPS  AcceleratorDevice = "mps"
)

// ExportConfig holds settings for the export stage, including the
// conversion-tuning knobs forwarded to the engine.
type ExportConfig struct {
	// OutputDir is the root directory for generated Markdown.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// FilesDir is the directory attachment files are downloaded into.
	FilesDir string `json:"files_dir" yaml:"files_dir"`

	// Overwrite controls whether existing Markdown outputs are replaced.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// DryRun reports intended actions without writing anything.
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// ForceFullPageOCR forces OCR even on machine-readable text layers.
	ForceFullPageOCR bool `json:"force_full_page_ocr" yaml:"force_full_page_ocr"`

	// DoPictureDescription enables image-captioning enrichment.
	DoPictureDescription bool `json:"do_picture_description" yaml:"do_picture_description"`

	// ImageResolutionScale scales extracted image resolution (default 2.0).
	ImageResolutionScale float64 `json:"image_resolution_scale" yaml:"image_resolution_scale"`

	// NumThreads hints the engine's thread count (default 4).
	NumThreads int `json:"num_threads" yaml:"num_threads"`

	// Device selects the engine's compute backend (default auto).
	Device AcceleratorDevice `json:"device" yaml:"device"`

	// Workers is the number of concurrent conversion workers (default 1).
	// Each worker owns its own engine handle.
	Workers int `json:"workers" yaml:"workers"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Library LibraryConfig `json:"library" yaml:"library"`
	Export  ExportConfig  `json:"export" yaml:"export"`
}

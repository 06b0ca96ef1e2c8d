package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/zotero-md/internal/container"
	"github.com/pdiddy/zotero-md/internal/convert"
	"github.com/pdiddy/zotero-md/internal/export"
	"github.com/pdiddy/zotero-md/internal/state"
	"github.com/pdiddy/zotero-md/internal/zotero"
	"github.com/pdiddy/zotero-md/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "zotero-md/0.1"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all library attachments to Markdown",
	Long: `Export lists every item in the configured Zotero library, downloads each
stored attachment, and converts it to Markdown under the output directory.
Existing outputs are skipped unless --overwrite is set; --dry-run reports
the intended actions without downloading or writing anything.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("library-type", "", `library type: "user" or "group" (default user)`)
	exportCmd.Flags().String("library-id", "", "numeric Zotero user or group ID")
	exportCmd.Flags().String("api-key", "", "Zotero API key (default: .secrets/zotero-api-key)")
	exportCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	exportCmd.Flags().Int("workers", 0, "number of concurrent conversion workers (default 1)")

	addExportPolicyFlags(exportCmd)

	rootCmd.AddCommand(exportCmd)
}

// addExportPolicyFlags registers the flags shared by export and convert:
// output placement, overwrite/dry-run policy, and the engine tuning knobs.
func addExportPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().String("output-dir", "markdown", "root directory for generated Markdown")
	cmd.Flags().String("files-dir", "files", "directory attachment files are downloaded into")
	cmd.Flags().Bool("overwrite", false, "replace existing Markdown outputs")
	cmd.Flags().Bool("dry-run", false, "report intended actions without writing anything")
	cmd.Flags().Bool("force-ocr", false, "force OCR even on machine-readable text layers")
	cmd.Flags().Bool("picture-description", false, "enable image-captioning enrichment")
	cmd.Flags().Float64("image-scale", 0, "extracted image resolution scale (default 2.0)")
	cmd.Flags().Int("threads", 0, "engine thread count hint (default 4)")
	cmd.Flags().String("device", "", "engine compute device: auto, cpu, cuda, or mps (default auto)")
}

// exportConfigFromFlags builds the export settings from flags, falling
// back to the viper config file for unset values.
func exportConfigFromFlags(cmd *cobra.Command) types.ExportConfig {
	cfg := types.ExportConfig{}
	cfg.OutputDir, _ = cmd.Flags().GetString("output-dir")
	cfg.FilesDir, _ = cmd.Flags().GetString("files-dir")
	cfg.Overwrite, _ = cmd.Flags().GetBool("overwrite")
	cfg.DryRun, _ = cmd.Flags().GetBool("dry-run")
	cfg.ForceFullPageOCR, _ = cmd.Flags().GetBool("force-ocr")
	cfg.DoPictureDescription, _ = cmd.Flags().GetBool("picture-description")
	cfg.ImageResolutionScale, _ = cmd.Flags().GetFloat64("image-scale")
	cfg.NumThreads, _ = cmd.Flags().GetInt("threads")
	device, _ := cmd.Flags().GetString("device")
	cfg.Device = types.AcceleratorDevice(device)

	if !cmd.Flags().Changed("force-ocr") {
		cfg.ForceFullPageOCR = viper.GetBool("export.force_full_page_ocr")
	}
	if !cmd.Flags().Changed("picture-description") {
		cfg.DoPictureDescription = viper.GetBool("export.do_picture_description")
	}
	if cfg.ImageResolutionScale == 0 {
		cfg.ImageResolutionScale = viper.GetFloat64("export.image_resolution_scale")
	}
	if cfg.NumThreads == 0 {
		cfg.NumThreads = viper.GetInt("export.num_threads")
	}
	if cfg.Device == "" {
		cfg.Device = types.AcceleratorDevice(viper.GetString("export.device"))
	}
	return cfg
}

// libraryConfigFromFlags builds the API client settings from flags,
// secrets, and the viper config file.
func libraryConfigFromFlags(cmd *cobra.Command) (types.LibraryConfig, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}

	libType, _ := cmd.Flags().GetString("library-type")
	if libType == "" {
		libType = viper.GetString("library.library_type")
	}
	if libType == "" {
		libType = string(types.LibraryUser)
	}
	if libType != string(types.LibraryUser) && libType != string(types.LibraryGroup) {
		return types.LibraryConfig{}, fmt.Errorf("invalid library type %q: use \"user\" or \"group\"", libType)
	}

	libID, _ := cmd.Flags().GetString("library-id")
	if libID == "" {
		libID = viper.GetString("library.library_id")
	}
	libID = secretDefault("zotero-library-id", libID)
	if libID == "" {
		return types.LibraryConfig{}, fmt.Errorf("no library ID: set --library-id, library.library_id in the config file, or .secrets/zotero-library-id")
	}

	apiKey, _ := cmd.Flags().GetString("api-key")
	apiKey = secretDefault("zotero-api-key", apiKey)

	return types.LibraryConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		LibraryType: types.LibraryType(libType),
		LibraryID:   libID,
		APIKey:      apiKey,
	}, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	libCfg, err := libraryConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	cfg := types.PipelineConfig{
		Library: libCfg,
		Export:  exportConfigFromFlags(cmd),
	}
	cfg.Export.Workers, _ = cmd.Flags().GetInt("workers")

	client := zotero.NewClient(&http.Client{Timeout: libCfg.Timeout}, libCfg)

	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	factory := func(opts convert.Options) (convert.Converter, error) {
		return convert.NewDoclingConverter(rt, opts)
	}

	var rec export.Recorder
	if !cfg.Export.DryRun {
		store, err := state.Open(cfg.Export.OutputDir)
		if err != nil {
			return err
		}
		defer store.Close()
		rec = store
	}

	report, err := export.Run(cmd.Context(), client, factory, cfg, rec, os.Stdout)
	if err != nil {
		return err
	}
	if report.HasFailures() {
		return fmt.Errorf("%d attachment(s) failed export", report.Failed)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/zotero-md/internal/container"
	"github.com/pdiddy/zotero-md/internal/convert"
	"github.com/pdiddy/zotero-md/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert already-downloaded files to Markdown",
	Long: `Convert renders local document files to Markdown without touching the
Zotero API. Each file becomes output-dir/<name>/<name>.md with embedded
images and page-break markers. The same overwrite, dry-run, and engine
options as export apply.`,
	RunE: runConvert,
}

func init() {
	addExportPolicyFlags(convertCmd)
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more document files to convert")
	}

	cfg := exportConfigFromFlags(cmd)

	rt, err := container.DetectRuntime()
	if err != nil {
		return err
	}
	handle := convert.NewHandle(func(opts convert.Options) (convert.Converter, error) {
		return convert.NewDoclingConverter(rt, opts)
	})

	var failed int
	for _, path := range args {
		// The filename stem stands in for the attachment key, so the
		// output lands at output-dir/<stem>/<stem>.md.
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		att := types.Attachment{Key: base}

		if _, err := convert.ConvertAttachment(handle, att, path, cfg, os.Stdout); err != nil {
			fmt.Fprintf(os.Stdout, "failed:  %s (%v)\n", base, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed conversion", failed)
	}
	return nil
}

package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guidesnap/guidesnap/internal/export"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database       string
	Output         string
	HTML           bool
	RawScreenshots bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <guide-id>",
		Short: "Export a guide to a ZIP archive or HTML document",
		Long: `Export a guide with its screenshots.

The default output is a ZIP archive containing numbered step images, a
guide.json manifest, and a README.html. With --html a single
self-contained HTML document is written instead, with images inlined.

Examples:
  guidesnap export 0192f3a1-...
  guidesnap export 0192f3a1-... --output my-guide.zip
  guidesnap export 0192f3a1-... --html`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (defaults to the guide title)")
	cmd.Flags().BoolVar(&opts.HTML, "html", false, "write a self-contained HTML document instead of a ZIP")
	cmd.Flags().BoolVar(&opts.RawScreenshots, "raw", false, "use raw screenshots even when annotated ones exist")

	return cmd
}

func runExport(opts *ExportOptions, guideID string, cmd *cobra.Command) error {
	st, err := openExistingStore(opts.Config, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	g, err := st.GetGuide(ctx, guideID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitFailure, fmt.Sprintf("guide not found: %s", guideID))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load guide", err)
	}
	steps, err := st.StepsForGuide(ctx, guideID)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load steps", err)
	}

	path := opts.Output
	if path == "" {
		ext := ".zip"
		if opts.HTML {
			ext = ".html"
		}
		path = export.SanitizeFilename(g.Title) + ext
	}

	f, err := os.Create(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create output file", err)
	}

	if opts.HTML {
		err = export.WriteHTML(f, g, steps, export.Options{
			IncludeDescriptions: true,
			UseAnnotated:        !opts.RawScreenshots,
		})
	} else {
		err = export.WriteZIP(f, g, steps)
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return WrapExitError(ExitFailure, "export failed", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitFailure, "failed to finish output file", err)
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: map[string]any{
			"guide_id": g.ID,
			"title":    g.Title,
			"steps":    len(steps),
			"path":     path,
		}})
	}

	if len(steps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), warnMsg("guide %q has no steps", g.Title))
	}
	fmt.Fprintln(cmd.OutOrStdout(), successMsg("Exported %q (%d steps) to %s", g.Title, len(steps), path))
	return nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
}

// guideSummary is the list entry shape for JSON output.
type guideSummary struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Type      guide.GuideType `json:"type"`
	Steps     int             `json:"steps"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded guides",
		Long: `List all recorded guides with their step counts.

Examples:
  guidesnap list
  guidesnap list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	st, err := openExistingStore(opts.Config, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	guides, err := st.ListGuides(context.Background())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to list guides", err)
	}

	summaries := make([]guideSummary, 0, len(guides))
	for _, g := range guides {
		summaries = append(summaries, guideSummary{
			ID:        g.ID,
			Title:     g.Title,
			Type:      g.Type,
			Steps:     len(g.StepIDs),
			CreatedAt: g.CreatedAt,
			UpdatedAt: g.UpdatedAt,
		})
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: summaries})
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, muted("No guides recorded yet."))
		return nil
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.ID,
			s.Title,
			string(s.Type),
			strconv.Itoa(s.Steps),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"ID", "Title", "Type", "Steps", "Updated"}, rows))
	return nil
}

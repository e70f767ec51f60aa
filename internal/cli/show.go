package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
}

// stepSummary is a step without its image payloads, for display.
type stepSummary struct {
	ID          string          `json:"id"`
	Index       int             `json:"index"`
	EventType   guide.EventType `json:"event_type"`
	Description string          `json:"description"`
	PageTitle   string          `json:"page_title,omitempty"`
	PageURL     string          `json:"page_url,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Screenshot  bool            `json:"screenshot"`
	Annotated   bool            `json:"annotated"`
}

// showResult is the JSON payload for a single guide.
type showResult struct {
	Guide guideSummary  `json:"guide"`
	Steps []stepSummary `json:"steps"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <guide-id>",
		Short: "Show a guide's steps",
		Long: `Show one guide with its ordered steps.

Examples:
  guidesnap show 0192f3a1-...
  guidesnap show 0192f3a1-... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runShow(opts *ShowOptions, guideID string, cmd *cobra.Command) error {
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

	result := showResult{
		Guide: guideSummary{
			ID:        g.ID,
			Title:     g.Title,
			Type:      g.Type,
			Steps:     len(g.StepIDs),
			CreatedAt: g.CreatedAt,
			UpdatedAt: g.UpdatedAt,
		},
	}
	for _, s := range steps {
		result.Steps = append(result.Steps, stepSummary{
			ID:          s.ID,
			Index:       s.Index,
			EventType:   s.EventType,
			Description: s.Description,
			PageTitle:   s.PageTitle,
			PageURL:     s.PageURL,
			Timestamp:   s.Timestamp,
			Screenshot:  len(s.ScreenshotRaw) > 0,
			Annotated:   len(s.ScreenshotAnnotated) > 0,
		})
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, bold(g.Title))
	fmt.Fprint(w, keyValues("  ", [][2]string{
		{"ID", g.ID},
		{"Type", string(g.Type)},
		{"Steps", fmt.Sprintf("%d", len(g.StepIDs))},
		{"Created", g.CreatedAt.Local().Format("2006-01-02 15:04")},
		{"Updated", g.UpdatedAt.Local().Format("2006-01-02 15:04")},
	}))
	fmt.Fprintln(w)

	if len(result.Steps) == 0 {
		fmt.Fprintln(w, muted("  (no steps)"))
		return nil
	}
	for _, s := range result.Steps {
		fmt.Fprintf(w, "  %s %s\n", accent(fmt.Sprintf("%d.", s.Index+1)), s.Description)
		if opts.Verbose {
			fmt.Fprintf(w, "     %s\n", muted(fmt.Sprintf("%s · %s · %s", s.EventType, s.PageTitle, s.ID)))
		}
	}
	return nil
}

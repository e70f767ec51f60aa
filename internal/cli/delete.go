package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Database string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <guide-id>",
		Short: "Delete a guide and all its steps",
		Long: `Delete a guide. All of its steps and screenshots are removed
with it.

Examples:
  guidesnap delete 0192f3a1-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runDelete(opts *DeleteOptions, guideID string, cmd *cobra.Command) error {
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

	if err := st.DeleteGuide(ctx, guideID); err != nil {
		return WrapExitError(ExitFailure, "failed to delete guide", err)
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: map[string]any{
			"guide_id": g.ID,
			"title":    g.Title,
		}})
	}

	fmt.Fprintln(cmd.OutOrStdout(), successMsg("Deleted %q (%d steps)", g.Title, len(g.StepIDs)))
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/guidesnap/guidesnap/internal/config"
	"github.com/guidesnap/guidesnap/internal/store"
)

// openExistingStore resolves the database path from config and flag
// override, then opens it. Read-side commands refuse to create a fresh
// database; an absent file means there is nothing to list or export.
func openExistingStore(configPath, dbOverride string) (*store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	path := cfg.DatabasePath
	if dbOverride != "" {
		path = dbOverride
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s (is the daemon running, or has anything been recorded?)", path))
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

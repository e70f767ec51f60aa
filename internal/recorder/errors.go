package recorder

import (
	"errors"
	"fmt"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// StateError reports a request that is invalid in the current recorder
// state, e.g. starting a recording while one is already active.
type StateError struct {
	Op   string       // "start", "pause"
	From guide.Status // state the recorder was in
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.From)
}

// IsStateError reports whether err is a StateError.
// Uses errors.As to handle wrapped errors.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

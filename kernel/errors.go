package kernel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TomHumphrey150/OpenJaw-sub004/patch"
)

// ErrPersist wraps a store failure that happened after a mutation was
// committed in memory. The returned result is still valid; call Flush to
// retry.
var ErrPersist = errors.New("persisting diagram")

// ValidationError reports structural defects in a submitted patch. Nothing
// was applied.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("patch validation failed: %s", strings.Join(e.Errors, "; "))
}

// ConflictError reports conflicted operations that lack a resolution.
// Nothing was applied.
type ConflictError struct {
	Conflicts []patch.Conflict
}

func (e *ConflictError) Error() string {
	indices := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		indices[i] = fmt.Sprintf("%d", c.OperationIndex)
	}
	return fmt.Sprintf("unresolved conflicts for operations %s", strings.Join(indices, ", "))
}

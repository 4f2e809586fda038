package tutor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ashgrovelabs/tutord/internal/directive"
)

// loadWorkflow reads a directive override from the workflow directory.
// Workflow names are bare file names; anything path-like is rejected so a
// payload cannot read files outside the workflow directory.
func (t *Tutor) loadWorkflow(name string) (directive.Directives, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: workflow name %q must be a bare file name", directive.ErrConfigInvalid, name)
	}

	path := filepath.Join(t.workflowDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow %q: %w", name, err)
	}

	ds, err := directive.ParseWorkflow(data)
	if err != nil {
		return nil, fmt.Errorf("workflow %q: %w", name, err)
	}
	return ds, nil
}

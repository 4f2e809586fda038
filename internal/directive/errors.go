package directive

import "errors"

var (
	// ErrConfigInvalid indicates a grading configuration that failed
	// eager validation. Nothing built on such a config may run.
	ErrConfigInvalid = errors.New("grading config invalid")

	// ErrRender indicates a directive template referenced a state key
	// that was never produced. This is a configuration integrity fault,
	// not a submission fault, and aborts the run.
	ErrRender = errors.New("template render failed")

	// ErrKeyExists indicates an attempt to overwrite pipeline state.
	// State is append-only within a run.
	ErrKeyExists = errors.New("state key already set")
)

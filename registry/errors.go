package registry

import "errors"

var (
	// ErrAlreadyMemoized is returned by Replace when the name already has a
	// saved original. Restore it first.
	ErrAlreadyMemoized = errors.New("already memoized")

	// ErrNotMemoized is returned by Restore when no original is saved.
	ErrNotMemoized = errors.New("not memoized")

	// ErrUndefined is returned when a name has no definition.
	ErrUndefined = errors.New("undefined function")
)

// NameError ties a registry failure to the offending name.
// Use errors.Is against the sentinels above.
type NameError struct {
	Op   string
	Name string
	Err  error
}

func (e *NameError) Error() string {
	return "registry: " + e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *NameError) Unwrap() error { return e.Err }

func nameErr(op, name string, err error) error {
	return &NameError{Op: op, Name: name, Err: err}
}

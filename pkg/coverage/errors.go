package coverage

import "errors"

var (
	// ErrNoSavePath is returned when saving a metadata store that was never
	// associated with a file path
	ErrNoSavePath = errors.New("cannot save: no file path set")
)

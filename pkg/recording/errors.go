package recording

import (
	"errors"
	"fmt"
)

// Reasons an exchange is not turned into a mapping.
var (
	ErrShadowsControlPlane = errors.New("a control-plane mapping already answers this request")
	ErrStatusNotRecorded   = errors.New("upstream status excluded by status code pattern")
	ErrPathNotRecorded     = errors.New("path excluded by record filter")
	ErrNoExchange          = errors.New("recording has no request or response")
)

// PersistenceError reports a failed WriteMappingFile call.
type PersistenceError struct {
	Name string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist mapping %s: %v", e.Name, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

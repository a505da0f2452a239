package shadow

import "errors"

var (
	ErrEmptyWorkspace = errors.New("workspace name cannot be empty")
)

package route

import "errors"

// Route errors surface as HTTP 400; no upstream is ever dialed for them.
var (
	ErrMissingRoute = errors.New("missing routing information")
	ErrBadPort      = errors.New("invalid port")
)

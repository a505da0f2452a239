package main

import "errors"

var (
	ErrLogLevel         = errors.New("invalid log level")
	ErrInvalidListen    = errors.New("invalid listen address")
	ErrStartProxy       = errors.New("starting proxy")
	ErrResolveWorkspace = errors.New("resolve workspace")
)

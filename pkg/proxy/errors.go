package proxy

import "errors"

var (
	ErrNoListeners = errors.New("no listen addresses configured")
	ErrListen      = errors.New("listen")
)

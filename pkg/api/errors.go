package api

import "errors"

var (
	ErrListenAddrFormat = errors.New("invalid listen address")
	ErrListenAddrPort   = errors.New("invalid listen port")
	ErrNoListenAddrs    = errors.New("at least one listen address is required")
)

package sdk

import "errors"

var (
	ErrProxyUnreachable = errors.New("proxy unreachable")
	ErrTunnelRejected   = errors.New("tunnel rejected")
)

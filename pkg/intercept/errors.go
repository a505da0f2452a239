package intercept

import "errors"

var (
	ErrShadowAddr = errors.New("derive shadow address")
)

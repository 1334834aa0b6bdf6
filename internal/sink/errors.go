package sink

import "errors"

var (
	ErrDisabled         = errors.New("sink: disabled in configuration")
	ErrConnectionFailed = errors.New("sink: connection failed")
)

package monitor

import "errors"

var (
	ErrAlreadyRunning = errors.New("monitor: already running")
	ErrNoSource       = errors.New("monitor: no bus source configured")
	ErrNoEnumerator   = errors.New("monitor: no device enumerator configured")
)

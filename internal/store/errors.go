package store

import "errors"

var (
	// ErrCorrupt 历史文件无法解析；调用方可以从空文档开始
	ErrCorrupt = errors.New("store: history document is corrupt")

	ErrUnknownBackend = errors.New("store: unknown backend")
)

package parser

import "errors"

var (
	ErrCrashed    = errors.New("parser: backend process crashed")
	ErrUnreadable = errors.New("parser: unreadable record")
	ErrNotFound   = errors.New("parser: backend binary not found on PATH")
)

package writepolicy

import "errors"

var (
	ErrQueueFull = errors.New("writepolicy: write-back queue full, archive write dropped")
	ErrClosed    = errors.New("writepolicy: policy closed")
)

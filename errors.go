package cache

import "errors"

var (
	ErrEmptyKey      = errors.New("cache: empty key")
	ErrNilProducer   = errors.New("cache: nil producer")
	ErrNegativeTTL   = errors.New("cache: negative ttl")
	ErrTypeMismatch  = errors.New("cache: cached value has unexpected type")
	ErrProducerPanic = errors.New("cache: producer panicked")
)

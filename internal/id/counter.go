package id

import "sync/atomic"

// Counter mints identifiers monotonically.
//
// Minting uses an atomic fetch-and-increment so that a counter may be
// shared between goroutines exploring independent call subtrees. The rest
// of the pipeline is single-writer; see engine.Engine.
//
// The zero value is ready to use and mints 0 first. A Counter must not be
// copied after first use; use Dup.
type Counter[K Kind, C Context] struct {
	current atomic.Uint32
}

// NewCounter returns a counter whose first minted identifier is 0.
func NewCounter[K Kind, C Context]() *Counter[K, C] {
	return &Counter[K, C]{}
}

// NewCounterAt returns a counter whose first minted identifier is start.
func NewCounterAt[K Kind, C Context](start uint32) *Counter[K, C] {
	c := &Counter[K, C]{}
	c.current.Store(start)
	return c
}

// CounterAfter returns a counter that mints identifiers strictly after last.
func CounterAfter[K Kind, C Context](last ID[K, C]) *Counter[K, C] {
	return NewCounterAt[K, C](last.value + 1)
}

// Next mints a fresh identifier.
func (c *Counter[K, C]) Next() ID[K, C] {
	return ID[K, C]{value: c.current.Add(1) - 1}
}

// Current returns the identifier the next call to Next will mint.
func (c *Counter[K, C]) Current() ID[K, C] {
	return ID[K, C]{value: c.current.Load()}
}

// Dup returns an independent counter at the same position.
func (c *Counter[K, C]) Dup() *Counter[K, C] {
	return NewCounterAt[K, C](c.current.Load())
}

// Package recentsamples keeps the most recently recorded slow requests in
// memory so operators can inspect them without querying the store.
package recentsamples

import (
	"sync"

	"github.com/kcz17/dumpslow/samples"
)

const DefaultSize = 100

// Buffer holds the last size samples added, oldest first. It is registered
// as a recorder observer, so Add is called on the request path and must stay
// cheap.
type Buffer struct {
	samples    []samples.Sample
	next       int
	full       bool
	samplesMux *sync.Mutex
}

func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Buffer{
		samples:    make([]samples.Sample, size),
		samplesMux: &sync.Mutex{},
	}
}

func (b *Buffer) Add(sample samples.Sample) {
	b.samplesMux.Lock()
	b.samples[b.next] = sample
	b.next = (b.next + 1) % len(b.samples)
	if b.next == 0 {
		b.full = true
	}
	b.samplesMux.Unlock()
}

// All returns a copy of the buffered samples, oldest first.
func (b *Buffer) All() []samples.Sample {
	b.samplesMux.Lock()
	defer b.samplesMux.Unlock()

	if !b.full {
		out := make([]samples.Sample, b.next)
		copy(out, b.samples[:b.next])
		return out
	}
	out := make([]samples.Sample, 0, len(b.samples))
	out = append(out, b.samples[b.next:]...)
	return append(out, b.samples[:b.next]...)
}

func (b *Buffer) Len() int {
	b.samplesMux.Lock()
	defer b.samplesMux.Unlock()
	if b.full {
		return len(b.samples)
	}
	return b.next
}

func (b *Buffer) Reset() {
	b.samplesMux.Lock()
	b.samples = make([]samples.Sample, len(b.samples))
	b.next = 0
	b.full = false
	b.samplesMux.Unlock()
}

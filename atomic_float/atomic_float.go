package atomic_float

import (
	"math"
	"sync/atomic"
)

// Float64 is a float64 that may be read and written from multiple goroutines, e.g. a
// training gauge written by the playground loop and read by http handlers.
// The zero value is 0.0 and ready to use.
type Float64 struct {
	bits atomic.Uint64
}

// Load atomically reads the value.
func (f *Float64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Store atomically sets the value.
func (f *Float64) Store(val float64) {
	f.bits.Store(math.Float64bits(val))
}

// Add atomically adds addend and returns the new value. It retries its CAS until it
// succeeds, so concurrent adds are never lost.
func (f *Float64) Add(addend float64) (newVal float64) {
	for {
		old := f.bits.Load()
		newVal = math.Float64frombits(old) + addend
		if f.bits.CompareAndSwap(old, math.Float64bits(newVal)) {
			return
		}
	}
}

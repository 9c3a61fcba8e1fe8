package connid

import "sync/atomic"

var counter atomic.Uint64

// Generate returns the next server-side connection ID, starting at 1
func Generate() uint64 {
	return counter.Add(1)
}

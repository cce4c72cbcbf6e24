package kroute

import (
	"math"
	"sync/atomic"
)

// CorrelationIDGenerator hands out the correlation ids tagging requests. It is safe for concurrent
// use and is shared by a Client and all of its clones, so ids never repeat across them until the
// sequence wraps around to 0 after math.MaxInt32.
type CorrelationIDGenerator struct {
	next int32
}

// Next returns the next id in the sequence.
func (g *CorrelationIDGenerator) Next() int32 {
	for {
		cur := atomic.LoadInt32(&g.next)
		next := cur + 1
		if cur == math.MaxInt32 {
			next = 0
		}
		if atomic.CompareAndSwapInt32(&g.next, cur, next) {
			return cur
		}
	}
}

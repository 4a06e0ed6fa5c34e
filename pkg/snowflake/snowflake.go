package snowflake

import (
	"errors"
	"sync"
	"time"
)

// Message IDs are 63-bit snowflakes: 41 bits of milliseconds since the epoch,
// 10 bits of node ID, 12 bits of per-millisecond sequence. Sorting by ID
// therefore sorts by creation time, which the messages clustering key relies
// on.
const (
	nodeBits        = 10
	seqBits         = 12
	nodeMax         = -1 ^ (-1 << nodeBits)
	seqMask         = -1 ^ (-1 << seqBits)
	timeShift       = nodeBits + seqBits
	nodeShift       = seqBits
	epoch     int64 = 1704067200000 // 2024-01-01 00:00:00 UTC
)

// Generator produces unique, time-ordered message IDs for one node.
type Generator struct {
	mu   sync.Mutex
	last int64
	node int64
	seq  int64
}

func New(node int64) (*Generator, error) {
	if node < 0 || node > nodeMax {
		return nil, errors.New("node number must be between 0 and 1023")
	}
	return &Generator{node: node}, nil
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UnixMilli()

	if now < g.last {
		// Clock moved backwards, refuse to go back in time.
		now = g.last
	}

	if now == g.last {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// Sequence exhausted for this millisecond, spin to the next one.
			for now <= g.last {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		g.seq = 0
	}

	g.last = now

	return ((now - epoch) << timeShift) | (g.node << nodeShift) | g.seq
}

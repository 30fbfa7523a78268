package hnsw

import (
	"math"
	"time"
)

func initialSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

// next advances the per-graph generator (xorshift64* over a Weyl sequence).
// It is lock-free and safe for concurrent use.
func (g *Graph) next() uint64 {
	seed := g.rng.Add(0x9E3779B97F4A7C15)
	seed ^= seed >> 12
	seed ^= seed << 25
	seed ^= seed >> 27
	return seed * 0x2545F4914F6CDD1D
}

// uniform returns a float in (0, 1).
func (g *Graph) uniform() float64 {
	for {
		r := float64(g.next()>>11) / float64(1<<53)
		if r > 0 {
			return r
		}
	}
}

// randomLevel samples floor(-ln(U) * 1/ln(M)), capped at MaxLevel.
func (g *Graph) randomLevel() int {
	level := int(math.Floor(-math.Log(g.uniform()) * g.levelMult))
	return min(level, MaxLevel)
}

// randomNode returns a pseudo-random index below n.
func (g *Graph) randomNode(n uint32) NodeIndex {
	return NodeIndex(g.next() % uint64(n))
}

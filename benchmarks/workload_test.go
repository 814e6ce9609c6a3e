package benchmarks

import (
	"math"
	"math/rand/v2"
)

// zipfWorkload draws n keys from [0, keySpace) with a YCSB-style Zipf
// distribution.
func zipfWorkload(n, keySpace int, theta float64, seed uint64) []int {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	keys := make([]int, n)

	spread := keySpace + 1
	zeta2 := zeta(2, theta)
	zetaN := zeta(uint64(spread), theta)
	alpha := 1.0 / (1.0 - theta)
	eta := (1 - math.Pow(2.0/float64(spread), 1.0-theta)) / (1.0 - zeta2/zetaN)
	halfPowTheta := 1.0 + math.Pow(0.5, theta)

	for i := range n {
		u := rng.Float64()
		uz := u * zetaN
		var k int
		switch {
		case uz < 1.0:
			k = 0
		case uz < halfPowTheta:
			k = 1
		default:
			k = int(float64(spread) * math.Pow(eta*u-eta+1.0, alpha))
		}
		keys[i] = min(k, keySpace-1)
	}
	return keys
}

// zeta computes sum(1/i^theta) for i in [1, n].
func zeta(n uint64, theta float64) float64 {
	sum := 0.0
	for i := uint64(1); i <= n; i++ {
		sum += 1.0 / math.Pow(float64(i), theta)
	}
	return sum
}

// profileWorkload mimics a social client: a small set of feeds read over and
// over, plus a third of one-off profile lookups.
func profileWorkload(n, hot int) []int {
	keys := make([]int, n)
	oneOff := 1_000_000
	for i := range n {
		if i%3 == 0 {
			keys[i] = oneOff
			oneOff++
		} else {
			keys[i] = i % hot
		}
	}
	return keys
}

// scanWorkload is a working set interrupted by a long cold scan.
func scanWorkload(n, working, scan int) []int {
	keys := make([]int, n)
	s := 0
	for i := range n {
		if i%100 < 90 {
			keys[i] = i % working
		} else {
			keys[i] = 1_000_000 + s%scan
			s++
		}
	}
	return keys
}

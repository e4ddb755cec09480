package balance

import "math"

// combinations walks the k-element subsets of {0..n-1} in lexicographic
// order, reusing one index buffer. The buffer is only valid until the next
// call to next.
type combinations struct {
	n, k    int
	idx     []int
	started bool
}

func newCombinations(n, k int) *combinations {
	return &combinations{n: n, k: k, idx: make([]int, k)}
}

// next advances to the following subset and reports whether one exists.
func (c *combinations) next() bool {
	if !c.started {
		c.started = true
		if c.k > c.n {
			return false
		}
		for i := range c.idx {
			c.idx[i] = i
		}
		return true
	}

	// rightmost position that can still move
	i := c.k - 1
	for i >= 0 && c.idx[i] == c.n-c.k+i {
		i--
	}
	if i < 0 {
		return false
	}
	c.idx[i]++
	for j := i + 1; j < c.k; j++ {
		c.idx[j] = c.idx[j-1] + 1
	}
	return true
}

// binomial returns C(n, k), saturating at math.MaxInt.
func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	r := 1
	for i := 1; i <= k; i++ {
		if r > math.MaxInt/(n-k+i) {
			return math.MaxInt
		}
		r = r * (n - k + i) / i
	}
	return r
}

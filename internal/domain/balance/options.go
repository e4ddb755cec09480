package balance

import (
	"slices"

	"github.com/okian/fulbito/pkg/logger"
)

// Option applies a configuration option to the Balancer.
type Option func(*Balancer)

// WithMaxCombinations caps the combinations examined per call.
// Zero or negative means unlimited.
func WithMaxCombinations(n int) Option {
	return func(b *Balancer) {
		b.maxCombinations = n
	}
}

// WithTeamSizes replaces the supported team sizes. Sizes outside 1..32
// cannot be represented and are ignored.
func WithTeamSizes(sizes ...int) Option {
	return func(b *Balancer) {
		valid := make([]int, 0, len(sizes))
		for _, k := range sizes {
			if k >= 1 && k <= maxTeamSize && !slices.Contains(valid, k) {
				valid = append(valid, k)
			}
		}
		if len(valid) > 0 {
			slices.Sort(valid)
			b.teamSizes = valid
		}
	}
}

// WithLogger sets the logger used for ceiling warnings.
func WithLogger(l logger.Logger) Option {
	return func(b *Balancer) {
		if l != nil {
			b.logger = l
		}
	}
}

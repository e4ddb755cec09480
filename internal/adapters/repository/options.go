package repository

import "time"

// JobOption applies a configuration option to the JobStore.
type JobOption func(*JobStore)

// WithJobTTL sets how long finished jobs stay retrievable.
func WithJobTTL(ttl time.Duration) JobOption {
	return func(s *JobStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often expired jobs are removed.
func WithSweepInterval(interval time.Duration) JobOption {
	return func(s *JobStore) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) JobOption {
	return func(s *JobStore) {
		if now != nil {
			s.now = now
		}
	}
}

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*SQLStore)

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) SQLOption {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

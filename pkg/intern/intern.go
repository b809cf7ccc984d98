// Package intern deduplicates repeated string values so that categorical
// Text columns share one copy of each distinct value.
package intern

import "strings"

// DefaultLimit bounds the number of distinct values a Pool remembers.
const DefaultLimit = 1 << 16

// Pool interns strings. Values are cloned on first sight so they never pin
// the buffer they were sliced from. Once limit distinct values are held,
// unseen values are cloned but no longer remembered, which keeps high
// cardinality columns such as identifiers from growing the pool.
//
// A Pool is not safe for concurrent use.
type Pool struct {
	values map[string]string
	limit  int
	hits   int
}

// New creates a Pool remembering up to limit distinct values; limit <= 0
// uses DefaultLimit.
func New(limit int) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pool{values: make(map[string]string), limit: limit}
}

// Get returns the pooled copy of s.
func (p *Pool) Get(s string) string {
	if v, ok := p.values[s]; ok {
		p.hits++
		return v
	}
	c := strings.Clone(s)
	if len(p.values) < p.limit {
		p.values[c] = c
	}
	return c
}

// Size returns the number of distinct values held.
func (p *Pool) Size() int { return len(p.values) }

// Hits returns how many lookups were served from the pool.
func (p *Pool) Hits() int { return p.hits }

// SPDX-License-Identifier: MPL-2.0

package repology

// Filter is one key/value constraint narrowing the aggregator's package list.
type Filter struct {
	Key   string
	Value string
}

// Criteria is an ordered list of filters, preserving the declaration order of
// the pacscript's repology array. Filtering is applied in this order, so a
// Criteria value must never be re-sorted.
type Criteria []Filter

// Get returns the value for key and whether it is present.
func (c Criteria) Get(key string) (string, bool) {
	for _, f := range c {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Without returns a copy of c with every filter for key removed. The receiver
// is left untouched.
func (c Criteria) Without(key string) Criteria {
	out := make(Criteria, 0, len(c))
	for _, f := range c {
		if f.Key != key {
			out = append(out, f)
		}
	}
	return out
}

// WithDefault returns c extended with key=value when key is absent, keeping
// the original order. The receiver is left untouched.
func (c Criteria) WithDefault(key, value string) Criteria {
	if _, ok := c.Get(key); ok {
		return c
	}
	out := make(Criteria, len(c), len(c)+1)
	copy(out, c)
	return append(out, Filter{Key: key, Value: value})
}

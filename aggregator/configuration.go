package aggregator

import (
	"bytes"
	"strings"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/magiconair/properties"
)

// Configuration is one immutable merged view, the output of a merge cycle.
type Configuration struct {
	values     map[string]string
	origins    map[string]string
	keys       []string
	precedence []string
	errors     []*SourceDecodeError
	shadowed   []Override
}

func emptyConfiguration() *Configuration {
	return newConfiguration(map[string]string{}, map[string]string{}, nil, nil, nil)
}

func newConfiguration(values map[string]string, origins map[string]string, precedence []string, errs []*SourceDecodeError, shadowed []Override) *Configuration {
	return &Configuration{
		values:     values,
		origins:    origins,
		keys:       sortedKeys(values),
		precedence: precedence,
		errors:     errs,
		shadowed:   shadowed,
	}
}

func (c *Configuration) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Origin names the source that supplied the resolved value of key.
func (c *Configuration) Origin(key string) (string, bool) {
	v, ok := c.origins[key]
	return v, ok
}

// Keys are sorted.
func (c *Configuration) Keys() []string {
	return append([]string(nil), c.keys...)
}

func (c *Configuration) Len() int {
	return len(c.keys)
}

func (c *Configuration) Values() map[string]string {
	copied := make(map[string]string, len(c.values))
	for k, v := range c.values {
		copied[k] = v
	}
	return copied
}

// Precedence lists the sources that took part in this cycle, highest first: `a > b > c`
func (c *Configuration) Precedence() string {
	return strings.Join(c.precedence, " > ")
}

// Sources are the names behind Precedence, degraded sources excluded
func (c *Configuration) Sources() []string {
	return append([]string(nil), c.precedence...)
}

func (c *Configuration) Errors() []*SourceDecodeError {
	return append([]*SourceDecodeError(nil), c.errors...)
}

func (c *Configuration) Shadowed() []Override {
	return append([]Override(nil), c.shadowed...)
}

// Properties renders the view in .properties format, sorted by key.
func (c *Configuration) Properties() string {
	p := properties.NewProperties()
	p.DisableExpansion = true

	for _, k := range c.keys {
		_, _, _ = p.Set(k, c.values[k])
	}

	var buf bytes.Buffer
	_, _ = p.Write(&buf, properties.UTF8)
	return buf.String()
}

// Keys added, removed or modified between two views, sorted
func changedKeys(previous *Configuration, next *Configuration) []string {
	changed := treeset.NewWithStringComparator()

	for k, v := range next.values {
		if old, ok := previous.values[k]; !ok || old != v {
			changed.Add(k)
		}
	}
	for k := range previous.values {
		if _, ok := next.values[k]; !ok {
			changed.Add(k)
		}
	}

	keys := make([]string, 0, changed.Size())
	for _, each := range changed.Values() {
		keys = append(keys, each.(string))
	}
	return keys
}

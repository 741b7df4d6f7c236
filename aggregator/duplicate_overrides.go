package aggregator

import "fmt"

// Override represents an explicit override that has no effect and can be removed
type Override struct {
	Key    string
	Value  string
	Source string
}

func (d Override) String() string {
	return fmt.Sprintf("%s: %s (%s);", d.Key, d.Value, d.Source)
}

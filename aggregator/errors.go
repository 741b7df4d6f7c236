package aggregator

import (
	"errors"
	"fmt"
)

var errInvalidUTF8 = errors.New("invalid UTF-8 content")

type DuplicateSourceNameError struct {
	Name string
}

func (e *DuplicateSourceNameError) Error() string {
	return fmt.Sprintf("property source [%s] is already registered", e.Name)
}

type UnknownSourceError struct {
	Name string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("property source [%s] is not registered", e.Name)
}

// SourceDecodeError reports a source that was treated as empty for a merge cycle.
type SourceDecodeError struct {
	Source string
	Err    error
}

func (e *SourceDecodeError) Error() string {
	return fmt.Sprintf("property source [%s] could not be decoded: %v", e.Source, e.Err)
}

func (e *SourceDecodeError) Unwrap() error {
	return e.Err
}

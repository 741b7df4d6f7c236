package backend

import (
	"context"
	"errors"
	"fmt"
)

type Sources []Source

// Source is a declared, fetchable property source
type Source interface {
	Ordering
	Name() string
	Load(ctxt context.Context) (map[string]string, error)
}

type Kind string

const (
	KindConfigMap Kind = "configmap"
	KindSecret    Kind = "secret"
	KindFile      Kind = "file"
)

// NotFoundError means the declared source does not exist. Optional sources are simply skipped.
type NotFoundError struct {
	Kind      Kind
	Namespace string
	Name      string
}

func (e *NotFoundError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("%s [%s] not found", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s [%s/%s] not found", e.Kind, e.Namespace, e.Name)
}

// TransportError wraps any failure to talk to the API server other than a missing object
type TransportError struct {
	Kind      Kind
	Namespace string
	Name      string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to get %s %s/%s: %v", e.Kind, e.Namespace, e.Name, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsUnavailable reports failures to reach a source, as opposed to it being absent or malformed
func IsUnavailable(err error) bool {
	var te *TransportError
	var ioe *IOError
	return errors.As(err, &te) || errors.As(err, &ioe)
}

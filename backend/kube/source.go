package kube

import (
	"context"

	"github.com/GlintPay/gkps/backend"
)

// Source is a declared ConfigMap or Secret, fetched on Load
type Source struct {
	Client    *Client
	Kind      backend.Kind
	Namespace string
	ObjName   string
	Ordinal   int
}

func (s *Source) Order() int {
	return s.Ordinal
}

func (s *Source) Name() string {
	return SourceName(s.Kind, s.Namespace, s.ObjName)
}

func (s *Source) Load(ctx context.Context) (map[string]string, error) {
	src, err := s.Client.fetch(ctx, s.Kind, s.Namespace, s.ObjName)
	if err != nil {
		return nil, err
	}
	return src.Entries, nil
}

package k8s

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/GlintPay/gkps/placeholders"
	"github.com/rs/zerolog/log"
)

const (
	PrefixK8sSecret      = "k8s/secret:"
	PrefixK8sConfigMap   = "k8s/configmap:"
	PrefixK8sConfigMapCM = "k8s/cm:" // shorthand for configmap
)

var k8sPlaceholderRegex = regexp.MustCompile(`\$\{(k8s/[^}]*)}`)

// ValueSource reads single keys of Secrets and ConfigMaps, see kube.Client
type ValueSource interface {
	GetSecretValue(ctx context.Context, namespace, name, key string) (string, bool, error)
	GetConfigMapValue(ctx context.Context, namespace, name, key string) (string, bool, error)
}

var _ placeholders.Resolver = (*Resolver)(nil)

type Resolver struct {
	client           ValueSource
	defaultNamespace string
}

func NewResolver(client ValueSource, defaultNamespace string) *Resolver {
	return &Resolver{
		client:           client,
		defaultNamespace: defaultNamespace,
	}
}

// IsK8sPlaceholder checks if the placeholder starts with a k8s prefix
func IsK8sPlaceholder(placeholder string) bool {
	return strings.HasPrefix(placeholder, PrefixK8sSecret) ||
		strings.HasPrefix(placeholder, PrefixK8sConfigMap) ||
		strings.HasPrefix(placeholder, PrefixK8sConfigMapCM)
}

func (r *Resolver) CanResolve(placeholder string) bool {
	return IsK8sPlaceholder(placeholder)
}

// Resolve fetches the value from Kubernetes.
// Placeholder formats:
//   - k8s/secret:namespace/name/key -> explicit namespace
//   - k8s/secret:name/key           -> uses default namespace
//   - k8s/configmap:namespace/name/key
//   - k8s/configmap:name/key
//
// Returns (value, found, error)
func (r *Resolver) Resolve(ctx context.Context, placeholder string) (string, bool, error) {
	var prefix string
	var isSecret bool

	switch {
	case strings.HasPrefix(placeholder, PrefixK8sSecret):
		prefix = PrefixK8sSecret
		isSecret = true
	case strings.HasPrefix(placeholder, PrefixK8sConfigMap):
		prefix = PrefixK8sConfigMap
	case strings.HasPrefix(placeholder, PrefixK8sConfigMapCM):
		prefix = PrefixK8sConfigMapCM
	default:
		return "", false, fmt.Errorf("unknown k8s placeholder prefix: %s", placeholder)
	}

	namespace, name, key, err := r.parsePath(strings.TrimPrefix(placeholder, prefix))
	if err != nil {
		return "", false, err
	}

	if isSecret {
		return r.client.GetSecretValue(ctx, namespace, name, key)
	}
	return r.client.GetConfigMapValue(ctx, namespace, name, key)
}

// ResolveEntries substitutes `${k8s/...}` placeholders within a single source's values and leaves
// every other placeholder for the merged view. Missing values resolve to blank.
func (r *Resolver) ResolveEntries(ctx context.Context, entries map[string]string) (map[string]string, error) {
	result := make(map[string]string, len(entries))

	for k, v := range entries {
		if !strings.Contains(v, "${k8s/") {
			result[k] = v
			continue
		}

		var firstErr error
		result[k] = k8sPlaceholderRegex.ReplaceAllStringFunc(v, func(match string) string {
			placeholder := match[2 : len(match)-1]
			if !r.CanResolve(placeholder) {
				return match
			}

			value, found, err := r.Resolve(ctx, placeholder)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return match
			}
			if !found {
				log.Warn().Msgf("Missing value for property [%s]", k)
				return ""
			}
			return value
		})

		if firstErr != nil {
			return nil, fmt.Errorf("resolving property [%s]: %w", k, firstErr)
		}
	}

	return result, nil
}

// parsePath extracts namespace, name, and key from the path.
// Format: "namespace/name/key" (3 segments) or "name/key" (2 segments, uses default namespace)
func (r *Resolver) parsePath(path string) (namespace, name, key string, err error) {
	parts := strings.Split(path, "/")

	switch len(parts) {
	case 2:
		// name/key - use default namespace
		if r.defaultNamespace == "" {
			return "", "", "", fmt.Errorf("no default namespace configured and placeholder missing namespace: %s", path)
		}
		return r.defaultNamespace, parts[0], parts[1], nil
	case 3:
		// namespace/name/key
		return parts[0], parts[1], parts[2], nil
	default:
		return "", "", "", fmt.Errorf("invalid k8s placeholder path (expected 2 or 3 segments): %s", path)
	}
}

package kube

import (
	"context"
	"fmt"
	"sort"

	"github.com/GlintPay/gkps/aggregator"
	"github.com/GlintPay/gkps/backend"
	"github.com/GlintPay/gkps/filetypes"
)

// SourceName is the property source name of a ConfigMap or Secret, `<kind>.<name>.<namespace>`
func SourceName(kind backend.Kind, namespace, name string) string {
	return fmt.Sprintf("%s.%s.%s", kind, name, namespace)
}

// FetchConfigMap reads a ConfigMap into a property source snapshot
func (c *Client) FetchConfigMap(ctx context.Context, namespace, name string) (aggregator.PropertySource, error) {
	return c.fetch(ctx, backend.KindConfigMap, namespace, name)
}

// FetchSecret reads a Secret into a property source snapshot
func (c *Client) FetchSecret(ctx context.Context, namespace, name string) (aggregator.PropertySource, error) {
	return c.fetch(ctx, backend.KindSecret, namespace, name)
}

func (c *Client) fetch(ctx context.Context, kind backend.Kind, namespace, name string) (aggregator.PropertySource, error) {
	src := aggregator.PropertySource{Name: SourceName(kind, namespace, name)}

	data, err := c.objectData(ctx, kind, namespace, name)
	if err != nil {
		return src, err
	}

	entries, err := Expand(data, c.decoding)
	if err != nil {
		return src, err
	}

	src.Entries = entries
	return src, nil
}

// Expand turns object data into entries. A key named like a file (`application.yaml`,
// `app.properties`) is decoded and contributes its own keys, other keys are taken literally.
// Keys are applied in sorted order, so a later key wins a collision.
func Expand(data map[string]string, opts filetypes.Options) (map[string]string, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make(map[string]string, len(data))

	for _, k := range keys {
		if readable, _ := filetypes.IsReadable(k); !readable {
			entries[k] = data[k]
			continue
		}

		decoded, err := filetypes.Decode(k, []byte(data[k]), opts)
		if err != nil {
			return nil, err
		}
		for dk, dv := range decoded {
			entries[dk] = dv
		}
	}

	return entries, nil
}

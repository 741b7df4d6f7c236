package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatten(t *testing.T) {
	tests := []tcase{
		{
			name: "hierarchy",
			args: map[string]any{
				"xxx": map[string]any{
					"currencies": []any{"DEF", "GHI", "JKL"},
					"metadata":   map[string]any{},
				},
				"val":        "yyy",
				"currencies": []any{"USD", "EUR"},
				"site":       map[string]any{"retries": 0},
				"timeout":    50,
			},
			expected: map[string]any{
				"xxx.currencies[0]": "DEF",
				"xxx.currencies[1]": "GHI",
				"xxx.currencies[2]": "JKL",
				"xxx.metadata":      map[string]any{},
				"currencies[0]":     "USD",
				"currencies[1]":     "EUR",
				"site.retries":      0,
				"timeout":           50,
				"val":               "yyy",
			},
			tokenizer: dotJoiner,
		},
		{
			name: "lists-of-maps-and-lists",
			args: map[string]any{
				"servers": []any{
					map[string]any{"host": "a", "ports": []any{80, 443}},
					map[string]any{"host": "b"},
				},
				"empty": []any{},
				"matrix": []any{
					[]any{1, 2},
				},
			},
			expected: map[string]any{
				"servers[0].host":     "a",
				"servers[0].ports[0]": 80,
				"servers[0].ports[1]": 443,
				"servers[1].host":     "b",
				"empty":               []any{},
				"matrix[0][0]":        1,
				"matrix[0][1]":        2,
			},
			tokenizer: dotJoiner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Flatten(tt.args, tt.tokenizer))
		})
	}
}

var dotJoiner = func(k []string) string {
	return strings.Join(k, ".")
}

type tcase struct {
	name      string
	args      map[string]any
	tokenizer func([]string) string
	expected  map[string]any
}

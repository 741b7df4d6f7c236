package utils

import "fmt"

// Flatten take a hierarchy and flatten it using the tokenizer supplied. List items become `name[i]`.
func Flatten(m map[string]any, tokenizer func([]string) string) map[string]any {
	var r = make(map[string]any)
	flattenRecursive(m, []string{}, func(ks []string, v any) {
		r[tokenizer(ks)] = v
	})
	return r
}

func flattenRecursive(m map[string]any, ks []string, cb func([]string, any)) {
	for k, v := range m {
		newks := append(append([]string{}, ks...), k)
		flattenValue(newks, v, cb)
	}
}

func flattenValue(ks []string, v any, cb func([]string, any)) {
	switch typed := v.(type) {
	case map[string]any:
		// Method borrowed from https://github.com/wolfeidau/unflatten/blob/master/flatten.go with this clause added
		// to handle empty map values
		if len(typed) == 0 {
			cb(ks, v)
			return
		}
		flattenRecursive(typed, ks, cb)
	case []any:
		if len(typed) == 0 {
			cb(ks, v)
			return
		}
		last := ks[len(ks)-1]
		for i, each := range typed {
			indexed := append(append([]string{}, ks[:len(ks)-1]...), fmt.Sprintf("%s[%d]", last, i))
			flattenValue(indexed, each, cb)
		}
	default:
		cb(ks, v)
	}
}

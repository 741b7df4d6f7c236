package binding

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/wolfeidau/unflatten"
)

const CSVSuffix = "CSV"
const DecimalSuffix = "_Decimal"
const DurationSuffix = "_Duration"
const StringSuffix = "_String"

const TagName = "from"

var indexPattern = regexp.MustCompile(`^\[(\d+)]$`)

// Bind decodes the entries under prefix into out, restructuring hierarchical properties such that
// `service.host: foo` and `service.port: 123` are grouped under a common parent, and `list[i]`
// entries become lists. Fields without a matching entry keep their current value, so defaults can
// be set before binding.
func Bind(values map[string]string, prefix string, out any) error {
	tree, ok := listify(unflatten.Unflatten(selectPrefix(values, prefix), splitKey)).(map[string]any)
	if !ok {
		return fmt.Errorf("entries under [%s] form a list, not a structure", prefix)
	}
	return decode(tree, out)
}

// BindFlattened decodes without unflattening any hierarchical property names. `from` tags name
// the full property, e.g. `from:"myService.host"`.
func BindFlattened(values map[string]string, prefix string, out any) error {
	return decode(selectPrefix(values, prefix), out)
}

func selectPrefix(values map[string]string, prefix string) map[string]any {
	selected := make(map[string]any, len(values))

	if prefix == "" {
		for k, v := range values {
			selected[k] = v
		}
		return selected
	}

	dotted := prefix + "."
	for k, v := range values {
		if strings.HasPrefix(k, dotted) {
			selected[k[len(dotted):]] = v
		}
	}
	return selected
}

// `servers[0].ports[1]` becomes servers, [0], ports, [1]
func splitKey(k string) []string {
	var result []string
	for _, part := range strings.Split(k, ".") {
		open := strings.Index(part, "[")
		if open <= 0 || !strings.HasSuffix(part, "]") {
			result = append(result, part)
			continue
		}

		result = append(result, part[:open])
		for _, index := range strings.SplitAfter(part[open:], "]") {
			if index != "" {
				result = append(result, index)
			}
		}
	}
	return result
}

// listify turns maps keyed only by `[i]` into lists, ordered by index
func listify(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	for k, each := range m {
		m[k] = listify(each)
	}

	if len(m) == 0 {
		return m
	}

	indices := make([]int, 0, len(m))
	byIndex := make(map[int]any, len(m))
	for k, each := range m {
		match := indexPattern.FindStringSubmatch(k)
		if match == nil {
			return m
		}
		i, _ := strconv.Atoi(match[1])
		indices = append(indices, i)
		byIndex[i] = each
	}
	sort.Ints(indices)

	list := make([]any, 0, len(indices))
	for _, i := range indices {
		list = append(list, byIndex[i])
	}
	return list
}

func decode(source map[string]any, out any) error {
	if err := remapDataValues(source); err != nil {
		return err
	}

	config := &mapstructure.DecoderConfig{
		TagName:          TagName,
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}
	return decoder.Decode(source)
}

// Map data items recursively, applying the suffix conventions
func remapDataValues(source map[string]any) error {
	keys := make([]string, 0, len(source))
	for k := range source {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		propertyValue := source[k]

		switch {
		case strings.HasSuffix(k, CSVSuffix) && len(k) > len(CSVSuffix):
			// Properties ending in "CSV" will, as a convenience, be split into a list on the fly
			str, ok := propertyValue.(string)
			if !ok {
				return fmt.Errorf("unexpected value type %+v for [%s] - should be string", propertyValue, k)
			}

			var list []string
			for _, each := range strings.Split(str, ",") {
				if trimmed := strings.TrimSpace(each); trimmed != "" {
					list = append(list, trimmed)
				}
			}
			source[strings.TrimSuffix(k, CSVSuffix)] = list
			delete(source, k)
		case strings.Index(k, DurationSuffix) > 0:
			converted, err := convertValues(k, propertyValue, func(s string) (any, error) {
				return time.ParseDuration(s)
			})
			if err != nil {
				return err
			}
			source[strings.Replace(k, DurationSuffix, "", 1)] = converted
			delete(source, k)
		case strings.Index(k, DecimalSuffix) > 0:
			// Properties ending in DecimalSuffix will be converted from string to decimal
			converted, err := convertValues(k, propertyValue, func(s string) (any, error) {
				return decimal.NewFromString(s)
			})
			if err != nil {
				return err
			}
			source[strings.Replace(k, DecimalSuffix, "", 1)] = converted
			delete(source, k)
		case strings.Index(k, StringSuffix) > 0:
			// Overrides that look like numbers but are meant as strings
			str, ok := propertyValue.(string)
			if !ok {
				return fmt.Errorf("unexpected value type %+v for [%s] - should be string", propertyValue, k)
			}
			source[strings.Replace(k, StringSuffix, "", 1)] = str
			delete(source, k)
		default:
			if err := remapNested(propertyValue); err != nil {
				return err
			}
		}
	}

	return nil
}

func remapNested(v any) error {
	switch typed := v.(type) {
	case map[string]any:
		return remapDataValues(typed)
	case []any:
		for _, each := range typed {
			if err := remapNested(each); err != nil {
				return err
			}
		}
	}
	return nil
}

// A single string, or a map of named strings
func convertValues(k string, propertyValue any, convert func(string) (any, error)) (any, error) {
	switch typed := propertyValue.(type) {
	case string:
		converted, err := convert(typed)
		if err != nil {
			return nil, fmt.Errorf("property [%s]: %w", k, err)
		}
		return converted, nil
	case map[string]any:
		result := make(map[string]any, len(typed))
		for pkey, pval := range typed {
			str, ok := pval.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected value type %+v for [%s.%s] - should be string", pval, k, pkey)
			}
			converted, err := convert(str)
			if err != nil {
				return nil, fmt.Errorf("property [%s.%s]: %w", k, pkey, err)
			}
			result[pkey] = converted
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unexpected value type %+v - should be string or map[string]any", typed)
	}
}

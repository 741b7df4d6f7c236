package filetypes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GlintPay/gkps/utils"
	"gopkg.in/yaml.v3"
)

// Document-level profile activation, as understood by Spring Boot
var profileActivationKeys = []string{"spring.config.activate.on-profile", "spring.profiles"}

var joinerFunc = func(k []string) string {
	return strings.Join(k, ".")
}

// YamlDecoder reads (possibly multi-document) YAML. Hierarchies are flattened with `.`, lists as `key[i]`.
// Later documents override earlier ones, and documents restricted to profiles apply only when one is active.
type YamlDecoder struct {
	Profiles  []string
	Decrypter Decrypter
}

func (d YamlDecoder) Decode(name string, data []byte) (map[string]string, error) {
	if !utf8.Valid(data) {
		return nil, &DecodeError{Name: name, Err: ErrInvalidUTF8}
	}

	decrypter := d.Decrypter
	if decrypter == nil {
		decrypter = noopDecrypter{}
	}

	plain, err := decrypter.Decrypt(data)
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}

	merged := make(map[string]string)

	decoder := yaml.NewDecoder(bytes.NewReader(plain))
	for {
		var doc map[string]any
		if e := decoder.Decode(&doc); e != nil {
			if errors.Is(e, io.EOF) {
				break
			}
			return nil, &DecodeError{Name: name, Err: e}
		}

		if doc == nil {
			continue
		}
		delete(doc, "sops")

		flattened := FlattenToStrings(doc)
		if !d.isActive(flattened) {
			continue
		}

		for k, v := range flattened {
			merged[k] = v
		}
	}

	return merged, nil
}

func (d YamlDecoder) isActive(doc map[string]string) bool {
	for _, key := range profileActivationKeys {
		expression, ok := doc[key]
		if !ok {
			continue
		}
		return matchesProfiles(expression, d.Profiles)
	}
	return true
}

// Comma-separated, any match activates. `!name` matches when name is not active.
func matchesProfiles(expression string, active []string) bool {
	for _, each := range utils.SplitProfileNames(expression) {
		negated := strings.HasPrefix(each, "!")
		wanted := strings.TrimPrefix(each, "!")

		found := false
		for _, profile := range active {
			if profile == wanted {
				found = true
				break
			}
		}

		if found != negated {
			return true
		}
	}
	return false
}

// FlattenToStrings flattens a decoded hierarchy and renders each leaf as a property string
func FlattenToStrings(doc map[string]any) map[string]string {
	flattened := utils.Flatten(normalize(doc).(map[string]any), joinerFunc)

	result := make(map[string]string, len(flattened))
	for k, v := range flattened {
		result[k] = stringify(v)
	}
	return result
}

// yaml.v3 produces map[any]any for mappings with non-string keys
func normalize(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		for k, each := range typed {
			typed[k] = normalize(each)
		}
		return typed
	case map[any]any:
		converted := make(map[string]any, len(typed))
		for k, each := range typed {
			converted[fmt.Sprint(k)] = normalize(each)
		}
		return converted
	case []any:
		for i, each := range typed {
			typed[i] = normalize(each)
		}
		return typed
	}
	return v
}

func stringify(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case uint64:
		return strconv.FormatUint(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case time.Time:
		return typed.Format(time.RFC3339)
	case map[string]any, []any:
		// Only empty collections survive flattening
		return ""
	default:
		return fmt.Sprint(typed)
	}
}

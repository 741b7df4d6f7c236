package placeholders

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

const UnresolvedPropertyResult = ""

var placeholderRegex = regexp.MustCompile(`\$\{[^}]*}`)

// Resolver handles prefixed placeholders that are not property names, e.g. k8s/secret:name/key
type Resolver interface {
	CanResolve(placeholder string) bool
	Resolve(ctx context.Context, placeholder string) (string, bool, error)
}

type Option func(*PropertiesResolver)

func WithResolvers(ctx context.Context, resolvers ...Resolver) Option {
	return func(pr *PropertiesResolver) {
		pr.ctx = ctx
		pr.external = append(pr.external, resolvers...)
	}
}

// PropertiesResolver handles embedded references: ${propertyName} and ${propertyName:defaultValueIfMissing}.
// NB. Blank values don't trigger default.
type PropertiesResolver struct {
	data      map[string]string
	done      map[string]bool
	resolving map[string]bool

	ctx      context.Context
	external []Resolver

	messages []string
	err      error
}

func New(data map[string]string, opts ...Option) *PropertiesResolver {
	copied := make(map[string]string, len(data))
	for k, v := range data {
		copied[k] = v
	}

	pr := &PropertiesResolver{
		data:      copied,
		done:      make(map[string]bool, len(data)),
		resolving: make(map[string]bool),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(pr)
	}
	return pr
}

// Resolve is the pure form, without external resolvers
func Resolve(data map[string]string) (map[string]string, []string) {
	pr := New(data)
	resolved, _ := pr.ResolveAll()
	return resolved, pr.Messages()
}

// ResolveAll returns a resolved copy of the data. The error is the first external resolver failure, if any.
func (pr *PropertiesResolver) ResolveAll() (map[string]string, error) {
	keys := make([]string, 0, len(pr.data))
	for k := range pr.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		pr.resolveKey(k)
	}
	return pr.data, pr.err
}

func (pr *PropertiesResolver) Messages() []string {
	return pr.messages
}

func (pr *PropertiesResolver) resolveKey(propertyName string) string {
	if pr.done[propertyName] {
		return pr.data[propertyName]
	}

	value := pr.data[propertyName]
	if !strings.Contains(value, "${") {
		pr.done[propertyName] = true
		return value
	}

	if pr.resolving[propertyName] {
		pr.addMessage("Circular placeholder reference for property [%s]", propertyName)
		return UnresolvedPropertyResult
	}
	pr.resolving[propertyName] = true
	defer delete(pr.resolving, propertyName)

	resolved := placeholderRegex.ReplaceAllStringFunc(value, func(foundMatch string) string {
		return pr.resolveMatch(propertyName, foundMatch)
	})

	pr.data[propertyName] = resolved
	pr.done[propertyName] = true
	return resolved
}

func (pr *PropertiesResolver) resolveMatch(propertyName string, foundMatch string) string {
	clause := strings.TrimSpace(foundMatch[2 : len(foundMatch)-1])
	if clause == "" {
		// ${} is not acceptable
		pr.addMessage("Missing placeholder [%s] for property [%s]", foundMatch, propertyName)
		return UnresolvedPropertyResult
	}

	// External placeholders own their whole clause, prefixes may contain colons
	for _, each := range pr.external {
		if !each.CanResolve(clause) {
			continue
		}

		val, found, err := each.Resolve(pr.ctx, clause)
		if err != nil {
			if pr.err == nil {
				pr.err = fmt.Errorf("placeholder %s for property [%s]: %w", foundMatch, propertyName, err)
			}
			return UnresolvedPropertyResult
		}
		if !found {
			pr.addMessage("Missing value for property [%s]", clause)
			return UnresolvedPropertyResult
		}
		return val
	}

	sourcePropertyWithDefault := splitDefault(clause)
	if _, ok := pr.data[sourcePropertyWithDefault[0]]; ok {
		return pr.resolveKey(sourcePropertyWithDefault[0])
	}

	return pr.defaultOrMissing(sourcePropertyWithDefault)
}

func (pr *PropertiesResolver) defaultOrMissing(sourcePropertyWithDefault []string) string {
	if len(sourcePropertyWithDefault) > 1 {
		// No match, use available default
		return sourcePropertyWithDefault[1]
	}

	pr.addMessage("Missing value for property [%s]", sourcePropertyWithDefault[0])
	return UnresolvedPropertyResult
}

// Defaults may themselves contain colons, e.g. URLs
func splitDefault(clause string) []string {
	return strings.SplitN(clause, ":", 2)
}

func (pr *PropertiesResolver) addMessage(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	pr.messages = append(pr.messages, msg)
	log.Warn().Msg(msg)
}

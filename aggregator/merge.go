package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/GlintPay/gkps/placeholders"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/rs/zerolog/log"
)

// Caller holds mu
func (a *Aggregator) mergeLocked() *Configuration {
	var decodeErrors []*SourceDecodeError

	usable := make([]*registered, 0, len(a.sources)) // highest precedence first
	for _, ps := range a.sources {
		if err := validate(ps); err != nil {
			decodeErrors = append(decodeErrors, &SourceDecodeError{Source: ps.Name, Err: err})
			a.observer.DecodeFailed(a.name, ps.Name)
			log.Warn().Err(err).Msgf("[%s] Treating property source [%s] as empty for this cycle", a.name, ps.Name)
			continue
		}
		usable = append(usable, ps)
	}

	reconciled := make(map[string]string)
	origins := make(map[string]string)
	var pointlessOverrides []Override

	listsToRemove := findCompletelyReplacedFlattenedLists(usable)

	// Lowest precedence first, so each higher source overrides what came before
	for i := len(usable) - 1; i >= 0; i-- {
		ps := usable[i]
		for _, k := range sortedKeys(ps.Entries) {
			if shouldSkipCompletelyReplacedFlattenedList(ps.Name, listsToRemove[i], k) {
				continue
			}

			v := ps.Entries[k]
			if curr, ok := reconciled[k]; ok && curr == v {
				pointlessOverrides = append(pointlessOverrides, Override{Key: k, Value: v, Source: ps.Name})
			}

			reconciled[k] = v
			origins[k] = ps.Name
		}
	}

	if a.resolvePlaceholders {
		resolved, messages := placeholders.Resolve(reconciled)
		reconciled = resolved
		if len(messages) > 0 {
			log.Debug().Msgf("[%s] %d placeholder(s) could not be resolved", a.name, len(messages))
		}
	}

	if len(pointlessOverrides) > 0 {
		log.Info().Msgf("[%s] Unnecessary overrides were found: %v", a.name, pointlessOverrides)
	}

	precedence := make([]string, 0, len(usable))
	for _, ps := range usable {
		precedence = append(precedence, ps.Name)
	}

	a.observer.MergeCompleted(a.name, len(reconciled))

	return newConfiguration(reconciled, origins, precedence, decodeErrors, pointlessOverrides)
}

func validate(ps *registered) error {
	if ps.failure != nil {
		return ps.failure
	}

	for k, v := range ps.Entries {
		if !utf8.ValidString(k) {
			return fmt.Errorf("key %q: %w", k, errInvalidUTF8)
		}
		if !utf8.ValidString(v) {
			return fmt.Errorf("value of [%s]: %w", k, errInvalidUTF8)
		}
	}
	return nil
}

// A flattened list (`servers[0]`, `servers[1].host`...) defined by a higher source replaces the whole
// list of every lower source, rather than merging index by index
func findCompletelyReplacedFlattenedLists(sources []*registered) []map[string]bool {
	listsToRemove := make([]map[string]bool, 0, len(sources))
	for _, ps := range sources {
		listsToRemove = append(listsToRemove, findFlattenedLists(ps.Entries))
	}

	listsSoFar := hashset.New()

	for i := range sources { // highest precedence first
		for listName := range listsToRemove[i] {
			if !listsSoFar.Contains(listName) {
				// First appearance of list - should be kept
				listsSoFar.Add(listName)
				delete(listsToRemove[i], listName)
			}
		}
	}

	return listsToRemove
}

func findFlattenedLists(source map[string]string) map[string]bool {
	var listNames = make(map[string]bool)
	for propertyName := range source {
		if listName, ok := flattenedListName(propertyName); ok {
			listNames[listName] = true
		}
	}
	return listNames
}

func flattenedListName(propertyName string) (string, bool) {
	idx := strings.IndexByte(propertyName, '[')
	if idx <= 0 {
		return "", false
	}

	end := strings.IndexByte(propertyName[idx:], ']')
	if end < 2 {
		return "", false
	}

	for _, r := range propertyName[idx+1 : idx+end] {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return propertyName[:idx], true
}

func shouldSkipCompletelyReplacedFlattenedList(psName string, lists map[string]bool, k string) bool {
	for eachName := range lists {
		if strings.HasPrefix(k, eachName+"[") {
			log.Debug().Msgf("Skipping overridden list entry [%s] in source [%s]", k, psName)
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

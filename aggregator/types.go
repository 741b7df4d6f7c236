package aggregator

// PropertySource is a named, ordered set of key/value entries. Lower Order is higher precedence.
type PropertySource struct {
	Name    string
	Order   int
	Entries map[string]string
}

func (ps PropertySource) copyEntries() map[string]string {
	entries := make(map[string]string, len(ps.Entries))
	for k, v := range ps.Entries {
		entries[k] = v
	}
	return entries
}

// ChangeFunc receives the keys whose resolved value was added, removed or modified, sorted.
type ChangeFunc func(changed []string)

// Observer receives merge statistics, typically a metrics recorder.
type Observer interface {
	MergeCompleted(aggregator string, keys int)
	DecodeFailed(aggregator string, source string)
	ChangesNotified(aggregator string, keys int)
}

type Option func(*Aggregator)

// WithName labels log lines and metrics emitted by this aggregator.
func WithName(name string) Option {
	return func(a *Aggregator) {
		a.name = name
	}
}

func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		a.observer = o
	}
}

// WithPlaceholders enables ${key} and ${key:default} resolution across the merged view.
func WithPlaceholders(enabled bool) Option {
	return func(a *Aggregator) {
		a.resolvePlaceholders = enabled
	}
}

type noopObserver struct{}

func (noopObserver) MergeCompleted(string, int)  {}
func (noopObserver) DecodeFailed(string, string) {}
func (noopObserver) ChangesNotified(string, int) {}

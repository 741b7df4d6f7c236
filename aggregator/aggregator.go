package aggregator

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

type registered struct {
	PropertySource
	seq     int
	failure error
}

// Aggregator merges registered property sources into one view. Writers are serialised, readers
// never block: each merge cycle publishes a new immutable Configuration.
type Aggregator struct {
	name                string
	observer            Observer
	resolvePlaceholders bool

	mu      sync.Mutex
	sources []*registered
	nextSeq int

	current atomic.Pointer[Configuration]

	subsMu    sync.RWMutex
	subs      map[int]ChangeFunc
	nextSubID int
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		name:     "default",
		observer: noopObserver{},
		subs:     make(map[int]ChangeFunc),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.current.Store(emptyConfiguration())
	return a
}

// Register inserts a source at its declared precedence. Subscribers are told about any keys it changes.
func (a *Aggregator) Register(src PropertySource) error {
	a.mu.Lock()

	if a.find(src.Name) != nil {
		a.mu.Unlock()
		return &DuplicateSourceNameError{Name: src.Name}
	}

	a.sources = append(a.sources, &registered{
		PropertySource: PropertySource{Name: src.Name, Order: src.Order, Entries: src.copyEntries()},
		seq:            a.nextSeq,
	})
	a.nextSeq++

	sort.SliceStable(a.sources, precedenceSorter{sources: a.sources}.less())

	log.Debug().Msgf("[%s] Registered property source [%s] with order %d", a.name, src.Name, src.Order)

	changed := a.swapLocked()
	a.mu.Unlock()

	a.notify(changed)
	return nil
}

// OnSourceChanged replaces the entries of a registered source and re-merges.
func (a *Aggregator) OnSourceChanged(name string, entries map[string]string) error {
	a.mu.Lock()

	existing := a.find(name)
	if existing == nil {
		a.mu.Unlock()
		return &UnknownSourceError{Name: name}
	}

	existing.Entries = PropertySource{Entries: entries}.copyEntries()
	existing.failure = nil

	changed := a.swapLocked()
	a.mu.Unlock()

	if len(changed) > 0 {
		log.Info().Msgf("[%s] Property source [%s] changed %d key(s)", a.name, name, len(changed))
	}

	a.notify(changed)
	return nil
}

// OnSourceFailed degrades a registered source to empty until its next successful change.
func (a *Aggregator) OnSourceFailed(name string, err error) error {
	a.mu.Lock()

	existing := a.find(name)
	if existing == nil {
		a.mu.Unlock()
		return &UnknownSourceError{Name: name}
	}

	existing.failure = err

	changed := a.swapLocked()
	a.mu.Unlock()

	a.notify(changed)
	return nil
}

// Lookup returns the value from the highest-precedence source defining key.
func (a *Aggregator) Lookup(key string) (string, bool) {
	return a.current.Load().Get(key)
}

// Merge recomputes the merged view from the current sources.
func (a *Aggregator) Merge() *Configuration {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.mergeLocked()
	a.current.Store(next)
	return next
}

// Current returns the most recently merged view.
func (a *Aggregator) Current() *Configuration {
	return a.current.Load()
}

// OnChange subscribes fn to change notifications. Call the returned func to unsubscribe.
func (a *Aggregator) OnChange(fn ChangeFunc) func() {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()

	subID := a.nextSubID
	a.nextSubID++
	a.subs[subID] = fn

	return func() {
		a.subsMu.Lock()
		defer a.subsMu.Unlock()
		delete(a.subs, subID)
	}
}

// Sources returns registered source names, highest precedence first.
func (a *Aggregator) Sources() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	names := make([]string, 0, len(a.sources))
	for _, each := range a.sources {
		names = append(names, each.Name)
	}
	return names
}

func (a *Aggregator) Has(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.find(name) != nil
}

func (a *Aggregator) find(name string) *registered {
	for _, each := range a.sources {
		if each.Name == name {
			return each
		}
	}
	return nil
}

// Caller holds mu
func (a *Aggregator) swapLocked() []string {
	previous := a.current.Load()
	next := a.mergeLocked()
	a.current.Store(next)
	return changedKeys(previous, next)
}

func (a *Aggregator) notify(changed []string) {
	if len(changed) == 0 {
		return
	}

	a.subsMu.RLock()
	subs := make([]ChangeFunc, 0, len(a.subs))
	ids := make([]int, 0, len(a.subs))
	for id := range a.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, a.subs[id])
	}
	a.subsMu.RUnlock()

	a.observer.ChangesNotified(a.name, len(changed))

	for _, sub := range subs {
		sub(append([]string(nil), changed...))
	}
}

package setup

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/GlintPay/gkps/aggregator"
	"github.com/GlintPay/gkps/backend"
	"github.com/GlintPay/gkps/backend/file"
	"github.com/GlintPay/gkps/backend/kube"
	"github.com/GlintPay/gkps/filetypes"
	"github.com/GlintPay/gkps/resolver/k8s"
	"github.com/rs/zerolog/log"
)

// FetchObserver is told about every source that could not be loaded, typically a metrics recorder
type FetchObserver interface {
	FetchFailed(source string, reason string)
}

const (
	ReasonNotFound    = "not_found"
	ReasonUnavailable = "unavailable"
	ReasonDecode      = "decode"
	ReasonResolve     = "resolve"
)

type Loader struct {
	opts     Options
	client   *kube.Client
	resolver *k8s.Resolver
	observer FetchObserver
	sources  backend.Sources
}

type LoaderOption func(*Loader)

func WithFetchObserver(o FetchObserver) LoaderOption {
	return func(l *Loader) {
		l.observer = o
	}
}

// New declares every source named by the options. client may be nil when no API access is configured.
func New(opts Options, client *kube.Client, decoding filetypes.Options, loaderOpts ...LoaderOption) *Loader {
	l := &Loader{opts: opts, client: client, observer: noopFetchObserver{}}
	for _, opt := range loaderOpts {
		opt(l)
	}

	if client != nil {
		l.resolver = k8s.NewResolver(client, client.DefaultNamespace())
	}

	l.sources = declare(opts, client, decoding)
	return l
}

// Sources in precedence order, highest first
func (l *Loader) Sources() backend.Sources {
	return l.sources
}

func declare(opts Options, client *kube.Client, decoding filetypes.Options) backend.Sources {
	var sources backend.Sources
	seen := make(map[string]bool)

	add := func(src backend.Source) {
		if seen[src.Name()] {
			log.Warn().Msgf("Ignoring duplicate source %s", src.Name())
			return
		}
		seen[src.Name()] = true
		sources = append(sources, src)
	}

	if client != nil {
		for i, each := range opts.Secrets.effective(opts) {
			add(&kube.Source{Client: client, Kind: backend.KindSecret, Namespace: each.Namespace, ObjName: each.Name, Ordinal: backend.OrderSecretsAPI + i})
		}

		configMaps := opts.Config.effective(opts)
		profiles := len(opts.Profiles)

		for i, each := range configMaps {
			for j, profile := range opts.Profiles {
				// Later profiles win
				order := backend.OrderProfileConfigMaps + i*profiles + (profiles - 1 - j)
				add(&kube.Source{Client: client, Kind: backend.KindConfigMap, Namespace: each.Namespace, ObjName: each.Name + "-" + profile, Ordinal: order})
			}
		}

		for i, each := range configMaps {
			add(&kube.Source{Client: client, Kind: backend.KindConfigMap, Namespace: each.Namespace, ObjName: each.Name, Ordinal: backend.OrderConfigMapsAPI + i})
		}
	} else if opts.Secrets.EnableAPI || opts.Config.EnableAPI {
		log.Warn().Msg("Kubernetes API sources requested without a client, ignoring")
	}

	for i, each := range opts.Secrets.Paths {
		add(&file.Backend{Path: each, Ordinal: backend.OrderSecretPaths + i, Options: decoding})
	}

	for i, each := range opts.Config.Paths {
		add(&file.Backend{Path: each, Ordinal: backend.OrderConfigMapPaths + i, Options: decoding})
	}

	sort.SliceStable(sources, backend.Sorter{Sources: sources}.Sort())
	return sources
}

// Load fetches and registers every declared source. Missing sources are skipped, undecodable
// ones registered as failed. Unreachable sources are skipped too, unless FailFast is set.
func (l *Loader) Load(ctx context.Context, agg *aggregator.Aggregator) error {
	for _, src := range l.sources {
		entries, err := src.Load(ctx)
		if err != nil {
			if e := l.failed(agg, src, err); e != nil {
				return e
			}
			continue
		}

		entries, err = l.preResolve(ctx, src, entries)
		if err != nil && l.opts.FailFast {
			return err
		}

		if e := agg.Register(aggregator.PropertySource{Name: src.Name(), Order: src.Order(), Entries: entries}); e != nil {
			return e
		}
		log.Info().Msgf("Registered %s with %d keys", src.Name(), len(entries))
	}

	return nil
}

func (l *Loader) failed(agg *aggregator.Aggregator, src backend.Source, err error) error {
	var decodeErr *filetypes.DecodeError

	switch {
	case backend.IsNotFound(err):
		l.observer.FetchFailed(src.Name(), ReasonNotFound)
		log.Info().Msgf("Source %s not found, skipping", src.Name())
		return nil
	case errors.As(err, &decodeErr):
		l.observer.FetchFailed(src.Name(), ReasonDecode)
		if !agg.Has(src.Name()) {
			if e := agg.Register(aggregator.PropertySource{Name: src.Name(), Order: src.Order()}); e != nil {
				return e
			}
		}
		return agg.OnSourceFailed(src.Name(), err)
	default:
		l.observer.FetchFailed(src.Name(), ReasonUnavailable)
		if l.opts.FailFast {
			return fmt.Errorf("loading %s: %w", src.Name(), err)
		}
		log.Warn().Err(err).Msgf("Source %s unavailable, skipping", src.Name())
		return nil
	}
}

// preResolve substitutes `${k8s/...}` placeholders. On failure the entries are kept unresolved.
func (l *Loader) preResolve(ctx context.Context, src backend.Source, entries map[string]string) (map[string]string, error) {
	if l.resolver == nil {
		return entries, nil
	}

	resolved, err := l.resolver.ResolveEntries(ctx, entries)
	if err != nil {
		l.observer.FetchFailed(src.Name(), ReasonResolve)
		log.Warn().Err(err).Msgf("Unresolved Kubernetes placeholders in %s", src.Name())
		return entries, fmt.Errorf("loading %s: %w", src.Name(), err)
	}
	return resolved, nil
}

// apply pushes a reloaded source into the aggregator
func (l *Loader) apply(ctx context.Context, agg *aggregator.Aggregator, src backend.Source, entries map[string]string, err error) {
	if err != nil {
		var decodeErr *filetypes.DecodeError
		switch {
		case backend.IsNotFound(err):
			// Deleted sources keep their slot with no entries
			l.observer.FetchFailed(src.Name(), ReasonNotFound)
			entries = map[string]string{}
		case errors.As(err, &decodeErr):
			if e := l.failed(agg, src, err); e != nil {
				log.Error().Err(e).Msgf("Reload of %s failed", src.Name())
			}
			return
		default:
			l.observer.FetchFailed(src.Name(), ReasonUnavailable)
			log.Warn().Err(err).Msgf("Reload of %s failed, keeping previous values", src.Name())
			return
		}
	}

	entries, _ = l.preResolve(ctx, src, entries)

	if agg.Has(src.Name()) {
		if e := agg.OnSourceChanged(src.Name(), entries); e != nil {
			log.Error().Err(e).Msgf("Reload of %s failed", src.Name())
		}
		return
	}

	if len(entries) == 0 {
		return
	}

	if e := agg.Register(aggregator.PropertySource{Name: src.Name(), Order: src.Order(), Entries: entries}); e != nil {
		log.Error().Err(e).Msgf("Late registration of %s failed", src.Name())
		return
	}
	log.Info().Msgf("Registered %s with %d keys", src.Name(), len(entries))
}

type noopFetchObserver struct{}

func (noopFetchObserver) FetchFailed(string, string) {}

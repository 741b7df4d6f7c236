package setup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/GlintPay/gkps/aggregator"
	"github.com/GlintPay/gkps/backend"
	"github.com/GlintPay/gkps/backend/file"
	"github.com/GlintPay/gkps/backend/kube"
	"github.com/GlintPay/gkps/config"
	"github.com/rs/zerolog/log"
)

var ErrUnknownReloadMode = errors.New("unknown reload mode")

// StartReload follows declared sources in the background until the context is done. ConfigMaps and
// Secrets are watched or polled depending on the mode, mounted paths are always watched.
func (l *Loader) StartReload(ctx context.Context, agg *aggregator.Aggregator) error {
	if !l.opts.Reload.Enabled {
		log.Info().Msg("Reload is disabled")
		return nil
	}

	var kubeSources []*kube.Source
	pathSources := make(map[string]*file.Backend)
	var paths []string

	for _, each := range l.sources {
		switch typed := each.(type) {
		case *kube.Source:
			kubeSources = append(kubeSources, typed)
		case *file.Backend:
			// The watcher reports cleaned paths
			pathSources[filepath.Clean(typed.Path)] = typed
			paths = append(paths, typed.Path)
		}
	}

	if len(kubeSources) > 0 {
		if err := l.startKubeReload(ctx, agg, kubeSources); err != nil {
			return err
		}
	}

	if len(paths) > 0 {
		watcher, err := file.NewWatcher(paths, l.opts.Reload.Debounce, func(path string) {
			src, ok := pathSources[path]
			if !ok {
				return
			}
			entries, loadErr := src.Load(ctx)
			l.apply(ctx, agg, src, entries, loadErr)
		})
		if err != nil {
			return err
		}

		go func() {
			defer watcher.Close()
			if e := watcher.Run(ctx); e != nil {
				log.Error().Err(e).Msg("File watcher stopped")
			}
		}()
		log.Info().Msgf("Watching %d paths", len(paths))
	}

	return nil
}

func (l *Loader) startKubeReload(ctx context.Context, agg *aggregator.Aggregator, sources []*kube.Source) error {
	updater := func(src backend.Source) kube.UpdateFunc {
		return func(entries map[string]string, err error) {
			l.apply(ctx, agg, src, entries, err)
		}
	}

	switch l.opts.Reload.Mode {
	case config.ReloadModePolling:
		poller := l.client.NewPoller(l.opts.Reload.Period)
		for _, each := range sources {
			poller.Add(each.Kind, each.Namespace, each.ObjName, updater(each))
		}
		return poller.Start(ctx)
	case config.ReloadModeEvent, "":
		for _, each := range sources {
			w := l.client.NewWatcher(each.Kind, each.Namespace, each.ObjName, updater(each))
			go func() {
				if e := w.Run(ctx); e != nil {
					log.Error().Err(e).Msg("Watch stopped")
				}
			}()
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownReloadMode, l.opts.Reload.Mode)
	}
}

package kube

import (
	"context"
	"fmt"
	"time"

	"github.com/GlintPay/gkps/backend"
	"github.com/rs/zerolog/log"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
)

const (
	defaultRetryBackoff = 5 * time.Second
	maxRetryBackoff     = time.Minute
	restartDelay        = time.Second
)

// UpdateFunc receives the new entries of a watched object, or the error expanding them.
// A deleted object is reported as empty entries.
type UpdateFunc func(entries map[string]string, err error)

// Watcher follows a single ConfigMap or Secret through the API server watch
type Watcher struct {
	client    *Client
	kind      backend.Kind
	namespace string
	name      string
	onUpdate  UpdateFunc

	retryBackoff time.Duration
	restartDelay time.Duration
}

func (c *Client) NewWatcher(kind backend.Kind, namespace, name string, onUpdate UpdateFunc) *Watcher {
	return &Watcher{
		client:       c,
		kind:         kind,
		namespace:    namespace,
		name:         name,
		onUpdate:     onUpdate,
		retryBackoff: defaultRetryBackoff,
		restartDelay: restartDelay,
	}
}

// Run watches until the context is done, re-establishing the watch whenever it fails or closes
func (w *Watcher) Run(ctx context.Context) error {
	logger := log.With().Str("kind", string(w.kind)).Str("namespace", w.namespace).Str("name", w.name).Logger()
	logger.Info().Msg("Starting watch")

	backoff := w.retryBackoff

	for {
		if ctx.Err() != nil {
			return nil
		}

		watcher, err := w.start(ctx)
		if err != nil {
			logger.Error().Err(err).Msgf("Failed to create watch, retrying in %v", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxRetryBackoff)
			continue
		}
		backoff = w.retryBackoff

		if done := w.consume(ctx, watcher); done {
			return nil
		}

		logger.Warn().Msg("Watch channel closed")
		if !sleep(ctx, w.restartDelay) {
			return nil
		}
	}
}

func (w *Watcher) start(ctx context.Context) (watch.Interface, error) {
	opts := metav1.ListOptions{FieldSelector: fmt.Sprintf("metadata.name=%s", w.name)}

	if w.kind == backend.KindSecret {
		return w.client.clientset.CoreV1().Secrets(w.namespace).Watch(ctx, opts)
	}
	return w.client.clientset.CoreV1().ConfigMaps(w.namespace).Watch(ctx, opts)
}

// consume returns true once the context is done, false when the watch needs restarting
func (w *Watcher) consume(ctx context.Context, watcher watch.Interface) bool {
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case event, ok := <-watcher.ResultChan():
			if !ok {
				return false
			}
			w.handle(event)
		}
	}
}

func (w *Watcher) handle(event watch.Event) {
	switch event.Type {
	case watch.Added, watch.Modified:
		data, ok := w.objectData(event.Object)
		if !ok {
			return
		}
		w.client.invalidate(w.kind, w.namespace, w.name)

		log.Info().Msgf("%s [%s/%s] updated with %d keys", w.kind, w.namespace, w.name, len(data))
		w.onUpdate(Expand(data, w.client.decoding))
	case watch.Deleted:
		if _, ok := w.objectData(event.Object); !ok {
			return
		}
		w.client.invalidate(w.kind, w.namespace, w.name)

		log.Info().Msgf("%s [%s/%s] deleted", w.kind, w.namespace, w.name)
		w.onUpdate(map[string]string{}, nil)
	case watch.Error:
		log.Error().Msgf("Watch error for %s [%s/%s]: %v", w.kind, w.namespace, w.name, event.Object)
	}
}

// objectData extracts the data of the watched object, ignoring any other object on the channel
func (w *Watcher) objectData(obj any) (map[string]string, bool) {
	switch typed := obj.(type) {
	case *corev1.ConfigMap:
		if w.kind != backend.KindConfigMap || typed.Name != w.name {
			return nil, false
		}
		return configMapData(typed), true
	case *corev1.Secret:
		if w.kind != backend.KindSecret || typed.Name != w.name {
			return nil, false
		}
		return secretData(typed), true
	}
	return nil, false
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

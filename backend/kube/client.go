package kube

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GlintPay/gkps/backend"
	"github.com/GlintPay/gkps/config"
	"github.com/GlintPay/gkps/filetypes"
	gotel "github.com/GlintPay/gkps/otel"
	"github.com/rs/zerolog/log"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

type Client struct {
	clientset kubernetes.Interface
	config    config.K8sConfig
	decoding  filetypes.Options
	cache     *objectCache
}

type ClientOption func(*Client)

// WithDecoding sets the profiles and decrypter used to expand `.properties`/`.yaml` keys
func WithDecoding(opts filetypes.Options) ClientOption {
	return func(c *Client) {
		c.decoding = opts
	}
}

type objectCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	data      map[string]string
	expiresAt time.Time
}

func NewClient(cfg config.K8sConfig, opts ...ClientOption) (*Client, error) {
	var restConfig *rest.Config
	var err error

	if cfg.Kubeconfig != "" {
		// Out-of-cluster: use kubeconfig file
		restConfig, err = clientcmd.BuildConfigFromFlags("", cfg.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build config from kubeconfig: %w", err)
		}
		log.Info().Str("kubeconfig", cfg.Kubeconfig).Msg("Using kubeconfig for K8s authentication")
	} else {
		// In-cluster: use service account
		restConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to get in-cluster config: %w", err)
		}
		log.Info().Msg("Using in-cluster K8s authentication")
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	return NewClientForInterface(clientset, cfg, opts...), nil
}

// NewClientForInterface wraps an existing clientset, such as the client-go fake
func NewClientForInterface(clientset kubernetes.Interface, cfg config.K8sConfig, opts ...ClientOption) *Client {
	client := &Client{
		clientset: clientset,
		config:    cfg,
	}

	for _, opt := range opts {
		opt(client)
	}

	if cfg.CacheTTLSeconds > 0 {
		client.cache = &objectCache{
			entries: make(map[string]cacheEntry),
			ttl:     time.Duration(cfg.CacheTTLSeconds) * time.Second,
		}
		log.Info().Int("ttl_seconds", cfg.CacheTTLSeconds).Msg("K8s resource caching enabled")
	}

	return client
}

func (c *Client) DefaultNamespace() string {
	return c.config.DefaultNamespace
}

func (c *Client) GetSecretValue(ctx context.Context, namespace, name, key string) (string, bool, error) {
	data, err := c.objectData(ctx, backend.KindSecret, namespace, name)
	if err != nil {
		if backend.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}

	value, ok := data[key]
	return value, ok, nil
}

func (c *Client) GetConfigMapValue(ctx context.Context, namespace, name, key string) (string, bool, error) {
	data, err := c.objectData(ctx, backend.KindConfigMap, namespace, name)
	if err != nil {
		if backend.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}

	value, ok := data[key]
	return value, ok, nil
}

// objectData returns the raw key/value content of a ConfigMap or Secret
func (c *Client) objectData(ctx context.Context, kind backend.Kind, namespace, name string) (data map[string]string, err error) {
	cacheKey := fmt.Sprintf("%s:%s/%s", kind, namespace, name)

	if c.cache != nil {
		if val, ok := c.cache.get(cacheKey); ok {
			return val, nil
		}
	}

	ctx, span := gotel.StartFetch(ctx, string(kind), namespace, name)
	defer func() { gotel.EndFetch(span, err) }()

	log.Debug().Msgf("Fetching K8s %s [%s/%s]...", kind, namespace, name)

	switch kind {
	case backend.KindSecret:
		secret, getErr := c.clientset.CoreV1().Secrets(namespace).Get(ctx, name, metav1.GetOptions{})
		if getErr != nil {
			return nil, classify(kind, namespace, name, getErr)
		}
		data = secretData(secret)
	default:
		configMap, getErr := c.clientset.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
		if getErr != nil {
			return nil, classify(kind, namespace, name, getErr)
		}
		data = configMapData(configMap)
	}

	if c.cache != nil {
		c.cache.set(cacheKey, data)
	}

	return data, nil
}

func (c *Client) invalidate(kind backend.Kind, namespace, name string) {
	if c.cache != nil {
		c.cache.delete(fmt.Sprintf("%s:%s/%s", kind, namespace, name))
	}
}

func classify(kind backend.Kind, namespace, name string, err error) error {
	if apierrors.IsNotFound(err) {
		return &backend.NotFoundError{Kind: kind, Namespace: namespace, Name: name}
	}
	return &backend.TransportError{Kind: kind, Namespace: namespace, Name: name, Err: err}
}

func secretData(secret *corev1.Secret) map[string]string {
	data := make(map[string]string, len(secret.Data)+len(secret.StringData))
	// Fall back to StringData
	for k, v := range secret.StringData {
		data[k] = v
	}
	// Data values are base64 decoded by client-go
	for k, v := range secret.Data {
		data[k] = string(v)
	}
	return data
}

func configMapData(configMap *corev1.ConfigMap) map[string]string {
	data := make(map[string]string, len(configMap.Data)+len(configMap.BinaryData))
	// BinaryData read as string
	for k, v := range configMap.BinaryData {
		data[k] = string(v)
	}
	for k, v := range configMap.Data {
		data[k] = v
	}
	return data
}

func (rc *objectCache) get(key string) (map[string]string, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	entry, ok := rc.entries[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.data, true
}

func (rc *objectCache) set(key string, data map[string]string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.entries[key] = cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(rc.ttl),
	}
}

func (rc *objectCache) delete(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	delete(rc.entries, key)
}

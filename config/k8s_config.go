package config

type Kubernetes struct {
	Client  K8sConfig
	Config  SourcesConfig
	Secrets SourcesConfig
	Reload  ReloadConfig
}

type K8sConfig struct {
	Enabled          bool   // Must be explicitly enabled to talk to the API server
	Kubeconfig       string // Path to kubeconfig file (empty = in-cluster auth)
	DefaultNamespace string `json:"defaultNamespace"` // Namespace when not specified by a source or placeholder
	CacheTTLSeconds  int    `json:"cacheTTLSeconds"`  // ConfigMap/Secret cache TTL (0 = no caching)
}

// SourcesConfig declares where ConfigMaps or Secrets are read from
type SourcesConfig struct {
	EnableAPI bool `json:"enableApi"`
	Sources   []NamedSource
	Paths     []string
}

type NamedSource struct {
	Name      string
	Namespace string
}

const (
	ReloadModeEvent   = "event"
	ReloadModePolling = "polling"
)

type ReloadConfig struct {
	Enabled        bool
	Mode           string
	PeriodMillis   int64 `json:"period"`
	DebounceMillis int64 `json:"debounce"`
}

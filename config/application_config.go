package config

import "github.com/GlintPay/gkps/utils"

type Configuration struct {
	ApplicationConfigFileYmlPath string `env:"APP_CONFIG_FILE_YML_PATH" envDefault:"application.yml"`

	// Comma-separated, each replaces what the YAML file says when set
	ActiveProfiles string `env:"APP_PROFILES_ACTIVE"`
	ConfigPaths    string `env:"APP_CONFIG_PATHS"`
	SecretPaths    string `env:"APP_SECRET_PATHS"`
}

// Apply overlays environment settings onto the file-based configuration
func (c Configuration) Apply(app *ApplicationConfiguration) {
	if c.ActiveProfiles != "" {
		app.Application.Profiles = utils.SplitProfileNames(c.ActiveProfiles)
	}
	if c.ConfigPaths != "" {
		app.Kubernetes.Config.Paths = utils.SplitPaths(c.ConfigPaths)
	}
	if c.SecretPaths != "" {
		app.Kubernetes.Secrets.Paths = utils.SplitPaths(c.SecretPaths)
	}
}

// ApplicationConfiguration Must use full names for `sigs.k8s.io/yaml`
type ApplicationConfiguration struct {
	Server      Server
	Prometheus  Prometheus
	Tracing     Tracing
	Logging     Logging
	Application Application
	Kubernetes  Kubernetes
}

type Server struct {
	Port int
}

type Tracing struct {
	Enabled         bool
	Endpoint        string
	SamplerFraction float64
}

type Prometheus struct {
	Path string
}

type Logging struct {
	Level        string
	LogResponses bool `json:"logResponses"`
}

type Application struct {
	Name     string
	Profiles []string

	// FailFast aborts startup when a declared source cannot be fetched
	FailFast            bool `json:"failFast"`
	ResolvePlaceholders bool `json:"resolvePlaceholders"`
}

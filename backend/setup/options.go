package setup

import (
	"time"

	"github.com/GlintPay/gkps/config"
	"github.com/GlintPay/gkps/utils"
)

type Options struct {
	ApplicationName string
	Namespace       string
	Profiles        []string

	// FailFast turns an unreachable or unreadable source into a startup error
	FailFast bool

	Config  SourceOptions
	Secrets SourceOptions
	Reload  ReloadOptions
}

type SourceOptions struct {
	EnableAPI bool
	Sources   []NamedSource
	Paths     []string
}

// NamedSource is one ConfigMap or Secret. Blank fields default to the application name and namespace.
type NamedSource struct {
	Name      string
	Namespace string
}

type ReloadOptions struct {
	Enabled  bool
	Mode     string
	Period   time.Duration
	Debounce time.Duration
}

func FromConfig(appConfig config.ApplicationConfiguration) Options {
	name := appConfig.Application.Name
	if name == "" {
		name = utils.DefaultApplicationName
	}

	return Options{
		ApplicationName: name,
		Namespace:       appConfig.Kubernetes.Client.DefaultNamespace,
		Profiles:        appConfig.Application.Profiles,
		FailFast:        appConfig.Application.FailFast,
		Config:          sourceOptions(appConfig.Kubernetes.Config),
		Secrets:         sourceOptions(appConfig.Kubernetes.Secrets),
		Reload: ReloadOptions{
			Enabled:  appConfig.Kubernetes.Reload.Enabled,
			Mode:     appConfig.Kubernetes.Reload.Mode,
			Period:   time.Duration(appConfig.Kubernetes.Reload.PeriodMillis) * time.Millisecond,
			Debounce: time.Duration(appConfig.Kubernetes.Reload.DebounceMillis) * time.Millisecond,
		},
	}
}

func sourceOptions(cfg config.SourcesConfig) SourceOptions {
	opts := SourceOptions{EnableAPI: cfg.EnableAPI, Paths: cfg.Paths}
	for _, each := range cfg.Sources {
		opts.Sources = append(opts.Sources, NamedSource{Name: each.Name, Namespace: each.Namespace})
	}
	return opts
}

// effective fills in defaults. Enabling the API without naming sources reads the application's own.
func (so SourceOptions) effective(opts Options) []NamedSource {
	if !so.EnableAPI {
		return nil
	}

	declared := so.Sources
	if len(declared) == 0 {
		declared = []NamedSource{{}}
	}

	result := make([]NamedSource, 0, len(declared))
	for _, each := range declared {
		if each.Name == "" {
			each.Name = opts.ApplicationName
		}
		if each.Namespace == "" {
			each.Namespace = opts.Namespace
		}
		result = append(result, each)
	}
	return result
}

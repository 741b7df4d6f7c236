package config

import (
	"testing"

	"github.com/caarlos0/env/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestApplicationConfigurationFromYaml(t *testing.T) {
	var cfg ApplicationConfiguration
	require.NoError(t, yaml.Unmarshal([]byte(`
server:
  port: 8080
application:
  name: demo
  profiles: [dev]
  failFast: true
kubernetes:
  client:
    enabled: true
    defaultNamespace: apps
    cacheTTLSeconds: 30
  config:
    enableApi: true
    sources:
      - name: demo
        namespace: other
    paths:
      - /tmp/scktests/application-path.yaml
  secrets:
    enableApi: true
  reload:
    enabled: true
    mode: polling
    period: 5000
    debounce: 100
`), &cfg))

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, Application{Name: "demo", Profiles: []string{"dev"}, FailFast: true}, cfg.Application)
	assert.Equal(t, K8sConfig{Enabled: true, DefaultNamespace: "apps", CacheTTLSeconds: 30}, cfg.Kubernetes.Client)
	assert.Equal(t, []NamedSource{{Name: "demo", Namespace: "other"}}, cfg.Kubernetes.Config.Sources)
	assert.Equal(t, []string{"/tmp/scktests/application-path.yaml"}, cfg.Kubernetes.Config.Paths)
	assert.True(t, cfg.Kubernetes.Secrets.EnableAPI)
	assert.Equal(t, ReloadConfig{Enabled: true, Mode: ReloadModePolling, PeriodMillis: 5000, DebounceMillis: 100}, cfg.Kubernetes.Reload)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_PROFILES_ACTIVE", "dev, test")
	t.Setenv("APP_CONFIG_PATHS", "/etc/config/application.yaml,/etc/config/extra.properties")

	var envConfig Configuration
	require.NoError(t, env.Parse(&envConfig))
	assert.Equal(t, "application.yml", envConfig.ApplicationConfigFileYmlPath)

	app := ApplicationConfiguration{}
	app.Kubernetes.Secrets.Paths = []string{"/etc/secrets"}
	envConfig.Apply(&app)

	assert.Equal(t, []string{"dev", "test"}, app.Application.Profiles)
	assert.Equal(t, []string{"/etc/config/application.yaml", "/etc/config/extra.properties"}, app.Kubernetes.Config.Paths)
	assert.Equal(t, []string{"/etc/secrets"}, app.Kubernetes.Secrets.Paths)
}

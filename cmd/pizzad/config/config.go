package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Environ returns the settings from the environment.
func Environ() (*Config, error) {
	cfg := Config{}
	err := envconfig.Process("", &cfg)
	defaults(&cfg)

	return &cfg, err
}

func defaults(c *Config) {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Config == "" {
		c.Database.Config = "pizzad.sqlite"
	}
	if c.Repo.CachePath == "" {
		c.Repo.CachePath = "/tmp/pizzad"
	}
	if c.ArtifactsPath == "" {
		c.ArtifactsPath = "/tmp/pizzad-artifacts"
	}
	if c.Scan.RescanSchedule == "" {
		c.Scan.RescanSchedule = "@midnight"
	}
}

// String returns the configuration in string format.
func (c *Config) String() string {
	out, _ := yaml.Marshal(c)
	return string(out)
}

type Config struct {
	Logging         Logging
	Database        Database
	Repo            Repo
	Registry        Registry
	Scan            Scan
	Sign            Sign
	Deploy          Deploy
	Notifications   Notifications
	ArtifactsPath   string `envconfig:"ARTIFACTS_PATH"`
	PrintAdminToken bool   `envconfig:"PRINT_ADMIN_TOKEN"`
	AdminToken      string `envconfig:"ADMIN_TOKEN"`
}

type Database struct {
	Driver        string `envconfig:"DATABASE_DRIVER"`
	Config        string `envconfig:"DATABASE_CONFIG"`
	EncryptionKey string `envconfig:"DATABASE_ENCRYPTION_KEY"`
}

// Logging provides the logging configuration.
type Logging struct {
	Debug  bool `envconfig:"DEBUG"`
	Trace  bool `envconfig:"TRACE"`
	Color  bool `envconfig:"LOGS_COLOR"`
	Pretty bool `envconfig:"LOGS_PRETTY"`
	Text   bool `envconfig:"LOGS_TEXT"`
}

// Repo is the application repository the pipeline delivers.
type Repo struct {
	Name      string `envconfig:"REPO_NAME"`
	URL       string `envconfig:"REPO_URL"`
	Username  string `envconfig:"REPO_USERNAME"`
	Token     string `envconfig:"REPO_TOKEN"`
	CachePath string `envconfig:"REPO_CACHE_PATH"`
}

type Registry struct {
	Host            string `envconfig:"REGISTRY_HOST"`
	Repository      string `envconfig:"REGISTRY_REPOSITORY"`
	User            string `envconfig:"REGISTRY_USER"`
	Pass            string `envconfig:"REGISTRY_PASS"`
	PruneBuildCache bool   `envconfig:"REGISTRY_PRUNE_BUILD_CACHE"`
}

type Scan struct {
	SinkURL        string `envconfig:"SARIF_SINK_URL"`
	SinkToken      string `envconfig:"SARIF_SINK_TOKEN"`
	RescanSchedule string `envconfig:"RESCAN_SCHEDULE"`
}

type Sign struct {
	Key        Multiline `envconfig:"COSIGN_KEY"`
	KeyPath    string    `envconfig:"COSIGN_KEY_PATH"`
	PubKeyPath string    `envconfig:"COSIGN_PUB_KEY_PATH"`
}

type Deploy struct {
	KubeconfigPath string `envconfig:"KUBECONFIG_PATH"`
	DOApiToken     string `envconfig:"DO_API_TOKEN"`
	DOClusterID    string `envconfig:"DO_CLUSTER_ID"`
}

type Notifications struct {
	Provider       string `envconfig:"NOTIFICATIONS_PROVIDER"`
	Token          string `envconfig:"NOTIFICATIONS_TOKEN"`
	DefaultChannel string `envconfig:"NOTIFICATIONS_DEFAULT_CHANNEL"`
	ChannelMapping string `envconfig:"NOTIFICATIONS_CHANNEL_MAPPING"`
}

func (c *Config) IsDigitalOcean() bool {
	return c.Deploy.DOApiToken != ""
}

type Multiline string

func (m *Multiline) Decode(value string) error {
	value = strings.ReplaceAll(value, "\\n", "\n")
	*m = Multiline(value)
	return nil
}

func (m *Multiline) String() string {
	return string(*m)
}

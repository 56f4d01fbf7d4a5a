package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the daemon configuration, loadable from environment variables
// (PRINTD_ prefix), flags, or YAML config files.
type Config struct {
	Addr            string   `default:"127.0.0.1:7575" usage:"API listen address"`
	Terminal        string   `default:"" usage:"Terminal name used for settings persistence" flag:"terminal"`
	DatabaseURL     string   `usage:"PostgreSQL URL for settings and job journal; empty runs in-memory" flag:"database-url"`
	PrintServiceURL string   `usage:"Base URL of the network print service used as fallback" flag:"print-service-url"`
	CORSOrigins     []string `default:"*" usage:"Allowed CORS origins for the POS front-end" flag:"cors-origins"`
	Graceful        GracefulConfig
}

// GracefulConfig controls shutdown timing.
type GracefulConfig struct {
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment, flags, and YAML files.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PRINTD",
		Files:     []string{"config.yaml", "/etc/printd/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if cfg.Terminal == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "pos-terminal"
		}
		cfg.Terminal = host
	}
	return &cfg, nil
}

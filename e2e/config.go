package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_SERVER_URL is the base URL of a running relay, e.g. http://localhost:3000. Empty skips the suite.
	ServerURL string `envconfig:"E2E_SERVER_URL"`
	CodecKey  string `envconfig:"E2E_CODEC_KEY" default:"secret-key-123"`
	// E2E_DEBUG_JSON dumps every received frame
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

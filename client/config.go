package client

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:3000/ws"`
	CodecKey  string `envconfig:"CHAT_CODEC_KEY" default:"secret-key-123"`
	// CHAT_COLOURS enables colorized output
	Colours  bool   `envconfig:"CHAT_COLOURS" default:"true"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

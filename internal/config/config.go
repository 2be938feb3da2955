package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Environment string `json:"environment"`
	Server      struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`
	MongoDB struct {
		URI      string `json:"uri"`
		Database string `json:"database"`
	} `json:"mongodb"`
	JWT struct {
		Secret  string `json:"secret"`
		TTLDays int    `json:"ttlDays"`
	} `json:"jwt"`
	CORS struct {
		AllowedOrigins []string `json:"allowedOrigins"`
	} `json:"cors"`
	Game struct {
		Variants             []string `json:"variants"`
		RestartNoticeSeconds int      `json:"restartNoticeSeconds"`
	} `json:"game"`
}

// Default is the development fallback used when no config file exists.
func Default() *Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.MongoDB.URI = "mongodb://localhost:27017"
	cfg.MongoDB.Database = "chess_arena"
	cfg.JWT.Secret = "dev-secret-change-me"
	cfg.JWT.TTLDays = 30
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.Game.Variants = []string{"Classical"}
	cfg.Game.RestartNoticeSeconds = 30
	return &cfg
}

// Load reads configs/config.{env}.json over the defaults. In dev a missing
// file is fine; any other environment must provide one.
func Load(env string) (*Config, error) {
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "configs"
	}

	cfg := Default()
	cfg.Environment = env

	filename := fmt.Sprintf("config.%s.json", env)
	configPath := filepath.Join(configDir, filename)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) && env == "dev" {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Replace ${VAR} references before parsing, so secrets stay out of the file.
	configStr := expandEnvVars(string(data))

	if err := json.Unmarshal([]byte(configStr), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Environment = env
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func GetEnv() string {
	env := os.Getenv("CHESS_ENV")
	if env == "" {
		return "dev"
	}
	return env
}

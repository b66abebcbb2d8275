package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Load reads, decodes, and env-overrides the config file. A .env file next
// to the working directory is loaded first if present, so deployments can
// keep secrets out of the config file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := decode(path, b)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}
	return cfg, nil
}

// decode runs the strict decoder: unknown fields and trailing data are
// errors, so a typo in the file fails startup instead of silently applying
// defaults.
func decode(path string, data []byte) (*Config, error) {
	jb, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("trailing data after config document")
		}
		return nil, err
	}
	return &cfg, nil
}

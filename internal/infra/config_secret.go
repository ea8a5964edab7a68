package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecretConfig matches the structure of secrets/swapspace.yaml.
// Keeping the credential out of the main config file lets the latter be
// committed safely.
type SecretConfig struct {
	API struct {
		SwapSpace struct {
			APIKey string `yaml:"api_key"`
		} `yaml:"swapspace"`
	} `yaml:"api"`
}

// LoadSecretConfig loads the API key from a separate yaml file.
// It returns an error if the file is missing (Fail Fast).
func LoadSecretConfig(path string) (*SecretConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret config: %w", err)
	}

	var cfg SecretConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse secret config: %w", err)
	}

	return &cfg, nil
}

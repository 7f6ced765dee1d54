package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	apiclient "github.com/splax/tasktrack/pkg/api/client"
	"github.com/splax/tasktrack/pkg/config"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
	Email       string `json:"email,omitempty"`
}

func defaultBaseURL() string {
	return config.LoadClientConfig().APIBaseURL
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultBaseURL()}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL()
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "tasktrack", "config.json"), nil
}

// newClient loads the saved config and builds an API client from it.
func newClient() (*apiclient.Client, cliConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cliConfig{}, err
	}
	client, err := apiclient.New(strings.TrimSpace(cfg.APIBaseURL))
	if err != nil {
		return nil, cliConfig{}, err
	}
	return client, cfg, nil
}

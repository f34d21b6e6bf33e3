package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"nftmarket/crypto"
)

type Config struct {
	RPCAddress        string `toml:"RPCAddress"`
	DataDir           string `toml:"DataDir"`
	NetworkName       string `toml:"NetworkName"`
	Environment       string `toml:"Environment"`
	LogLevel          string `toml:"LogLevel"`
	RPCToken          string `toml:"RPCToken"`
	AdminKeystorePath string `toml:"AdminKeystorePath"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if cfg.AdminKeystorePath == "" {
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./nftmarket-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "nftmarket-local"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
}

// ensureKeystore makes sure an admin keystore exists next to the config file,
// generating a fresh key on first run, and persists the resolved path.
func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := defaultKeystorePath(configPath)
	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	cfg.AdminKeystorePath = keystorePath
	return persist(configPath, cfg)
}

// createDefault creates and saves a default configuration file together with a
// freshly generated admin keystore.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:        ":8080",
		DataDir:           "./nftmarket-data",
		NetworkName:       "nftmarket-local",
		LogLevel:          "info",
		AdminKeystorePath: keystorePath,
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "admin.keystore")
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/drockwell/flotilla/internal/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".flotilla.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/flotilla"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
)

// Load reads config from the specified path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Config file not found",
				"Run 'flotilla init' to create a config file, or specify one with --config")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file",
			"Check the file exists and is valid YAML")
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to parse config file: "+path,
			"Check the YAML structure matches the documented schema")
	}

	// Viper lowercases every key it touches, including nested map keys.
	// That's fine for section names but corrupts env variable names, so
	// env maps are re-read from the raw YAML.
	if err := restoreEnvKeys(path, cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// restoreEnvKeys re-parses just the env maps with a case-preserving YAML
// decoder and swaps them into cfg.
func restoreEnvKeys(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to re-read config file: "+path, "")
	}

	var raw struct {
		Hosts map[string]struct {
			Env map[string]string `yaml:"env"`
		} `yaml:"hosts"`
		Tasks map[string]struct {
			Env map[string]string `yaml:"env"`
		} `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// Viper already parsed this file; a failure here means the two
		// parsers disagree, which is worth surfacing.
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to parse config file: "+path,
			"Check the YAML structure matches the documented schema")
	}

	for alias, host := range raw.Hosts {
		if host.Env == nil {
			continue
		}
		// Viper also lowercased the outer keys.
		key := strings.ToLower(alias)
		if ov, ok := cfg.Hosts[key]; ok {
			ov.Env = host.Env
			cfg.Hosts[key] = ov
		}
	}
	for name, task := range raw.Tasks {
		if task.Env == nil {
			continue
		}
		key := strings.ToLower(name)
		if tc, ok := cfg.Tasks[key]; ok {
			tc.Env = task.Env
			cfg.Tasks[key] = tc
		}
	}
	return nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .flotilla.yaml in current directory
// 3. .flotilla.yaml in parent directories (stops at git root or home)
// 4. ~/.config/flotilla/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	// 1. Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	// 2. Current directory
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	// 3. Walk up to parent directories
	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		if home != "" && parent == home {
			// Don't go above home directory
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		// Stop at git root
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break
		}
	}

	// 4. Global config
	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads config from the found path, or returns defaults if no
// config file exists anywhere in the search path.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}

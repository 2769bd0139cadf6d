package config

import (
	"os"

	"github.com/drockwell/flotilla/internal/errors"
	"github.com/drockwell/flotilla/internal/fleet"
	"gopkg.in/yaml.v3"
)

// Starter returns the scaffold config written by 'flotilla init'.
func Starter() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Hosts: map[string]fleet.Overrides{
			"web1": {
				Address: "web1.example.com",
				User:    "deploy",
			},
			"web2": {
				Address: "web2.example.com",
				User:    "deploy",
				Gateway: "bastion",
			},
			"bastion": {
				Address: "bastion.example.com",
			},
		},
		Tasks: map[string]TaskConfig{
			"uptime": {
				Description: "Show uptime on every host",
				Run:         "uptime",
			},
			"deploy": {
				Description: "Pull and restart the app",
				Run:         "cd /srv/app && git pull && systemctl --user restart app",
				Env:         map[string]string{"GIT_TERMINAL_PROMPT": "0"},
			},
		},
	}
}

// WriteStarter renders the starter config as YAML at path. Refuses to
// overwrite an existing file unless force is set.
func WriteStarter(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.New(errors.ErrConfig,
				"Config file already exists: "+path,
				"Use --force to overwrite it.")
		}
	}

	data, err := yaml.Marshal(Starter())
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to render starter config", "")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write "+path,
			"Check directory permissions.")
	}
	return nil
}

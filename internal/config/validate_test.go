package config

import (
	"testing"

	"github.com/drockwell/flotilla/internal/errors"
	"github.com/drockwell/flotilla/internal/fleet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(c *Config) {},
		},
		{
			name:    "version from the future",
			mutate:  func(c *Config) { c.Version = CurrentConfigVersion + 1 },
			wantErr: "newer than this build",
		},
		{
			name: "task without run",
			mutate: func(c *Config) {
				c.Tasks["broken"] = TaskConfig{Description: "no command"}
			},
			wantErr: "no run command",
		},
		{
			name: "task with negative pool",
			mutate: func(c *Config) {
				c.Tasks["broken"] = TaskConfig{Run: "true", Pool: -1}
			},
			wantErr: "negative pool",
		},
		{
			name: "empty host alias",
			mutate: func(c *Config) {
				c.Hosts[""] = fleet.Overrides{User: "x"}
			},
			wantErr: "empty alias",
		},
		{
			name: "port out of range",
			mutate: func(c *Config) {
				c.Hosts["web1"] = fleet.Overrides{Port: 70000}
			},
			wantErr: "invalid port",
		},
		{
			name: "negative connect attempts",
			mutate: func(c *Config) {
				c.Hosts["web1"] = fleet.Overrides{ConnectAttempts: -2}
			},
			wantErr: "connect_attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolver_AppliesDefaultsSection(t *testing.T) {
	useAgent := false
	cfg := DefaultConfig()
	cfg.SSHConfig = "off"
	cfg.Defaults = DefaultsConfig{
		User:          "deploy",
		Port:          2222,
		IdentityFiles: []string{"/keys/deploy"},
		UseAgent:      &useAgent,
	}
	cfg.Hosts["web1"] = fleet.Overrides{Address: "web1.internal"}

	r := cfg.Resolver()
	assert.Empty(t, r.SSHConfigPath)
	assert.Equal(t, "deploy", r.Defaults.User)
	assert.Equal(t, 2222, r.Defaults.Port)
	assert.False(t, r.Defaults.UseAgent)

	spec, err := fleet.ParseHostSpec("web1")
	require.NoError(t, err)
	cc, err := r.Resolve(spec, nil)
	require.NoError(t, err)
	assert.Equal(t, "deploy@web1.internal:2222", cc.Identity())
}

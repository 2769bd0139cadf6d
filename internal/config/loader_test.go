package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
version: 1
ssh_config: "off"
defaults:
  user: deploy
  connect_timeout: 15s
hosts:
  web1:
    address: web1.internal
    port: 2222
  web2:
    gateway: bastion
    env:
      STAGE: prod
tasks:
  uptime:
    description: Show uptime
    run: uptime
    pool: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "deploy", cfg.Defaults.User)
	assert.Equal(t, 15*time.Second, cfg.Defaults.ConnectTimeout)

	require.Contains(t, cfg.Hosts, "web1")
	assert.Equal(t, "web1.internal", cfg.Hosts["web1"].Address)
	assert.Equal(t, 2222, cfg.Hosts["web1"].Port)
	assert.Equal(t, "bastion", cfg.Hosts["web2"].Gateway)
	assert.Equal(t, "prod", cfg.Hosts["web2"].Env["STAGE"])

	require.Contains(t, cfg.Tasks, "uptime")
	assert.Equal(t, "uptime", cfg.Tasks["uptime"].Run)
	assert.Equal(t, 2, cfg.Tasks["uptime"].Pool)
}

func TestLoad_EnvKeysKeepCase(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
version: 1
hosts:
  web1:
    env:
      DEPLOY_ENV: staging
      PATH_SUFFIX: /opt/bin
tasks:
  deploy:
    run: deploy.sh
    env:
      GIT_TERMINAL_PROMPT: "0"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Hosts["web1"].Env["DEPLOY_ENV"])
	assert.Equal(t, "/opt/bin", cfg.Hosts["web1"].Env["PATH_SUFFIX"])
	assert.Equal(t, "0", cfg.Tasks["deploy"].Env["GIT_TERMINAL_PROMPT"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), ConfigFileName))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "hosts: [not: a: map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestFind_ExplicitPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "version: 1")

	found, err := Find(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)

	_, err = Find(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFind_CurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "version: 1")

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(cwd) })

	found, err := Find("")
	require.NoError(t, err)
	// TempDir may come back via a symlink on some platforms.
	assert.Equal(t, filepath.Base(path), filepath.Base(found))
}

func TestFind_ParentDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "version: 1")
	child := filepath.Join(dir, "sub", "deeper")
	require.NoError(t, os.MkdirAll(child, 0755))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(child))
	t.Cleanup(func() { os.Chdir(cwd) })

	found, err := Find("")
	require.NoError(t, err)
	assert.Equal(t, ConfigFileName, filepath.Base(found))
}

func TestLoadOrDefault_NoConfigAnywhere(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(cwd) })

	// A .git marker stops the upward search before it can leave the
	// temp dir and find a developer's real config.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	t.Setenv("HOME", dir)

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Empty(t, cfg.Hosts)
}

package config

import (
	"fmt"

	"github.com/drockwell/flotilla/internal/errors"
)

// Validate checks a loaded config for problems worth failing fast on.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Config version %d is newer than this build supports (%d)", cfg.Version, CurrentConfigVersion),
			"Upgrade flotilla, or lower the version field.")
	}

	for name, task := range cfg.Tasks {
		if task.Run == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Task '%s' has no run command", name),
				"Add a 'run' entry to the task.")
		}
		if task.Pool < 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Task '%s' has a negative pool size", name),
				"Use 0 to inherit the --pool flag, or a positive cap.")
		}
	}

	for alias, host := range cfg.Hosts {
		if alias == "" {
			return errors.New(errors.ErrConfig,
				"Host override with empty alias",
				"Key every hosts entry by alias or host string.")
		}
		if host.Port < 0 || host.Port > 65535 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' has an invalid port %d", alias, host.Port),
				"Ports are 1-65535.")
		}
		if host.ConnectAttempts < 0 {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' has a negative connect_attempts", alias),
				"Use 0 to inherit defaults, or a positive attempt count.")
		}
	}

	return nil
}

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/drockwell/flotilla/internal/config"
)

// initCommand writes a starter config to the current directory.
func initCommand(force bool) (int, error) {
	path := filepath.Join(".", config.ConfigFileName)
	if err := config.WriteStarter(path, force); err != nil {
		return 1, err
	}
	fmt.Printf("Wrote %s. Edit the hosts and tasks sections, then try:\n", path)
	fmt.Println("  flotilla run uptime")
	return 0, nil
}

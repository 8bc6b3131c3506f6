package cf

import (
	"os"
	"path/filepath"
)

const (
	configDirName  = ".cf"
	configFileName = "config.json"
)

// ConfigPath returns the session file location for cfHome. An empty cfHome
// resolves the same way the CLI does: $CF_HOME, then the user's home.
func ConfigPath(cfHome string) string {
	if cfHome == "" {
		cfHome = os.Getenv("CF_HOME")
	}
	if cfHome == "" {
		cfHome, _ = os.UserHomeDir()
	}
	return filepath.Join(cfHome, configDirName, configFileName)
}

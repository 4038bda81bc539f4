package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wifigate/wifigate/internal/config"
	"github.com/wifigate/wifigate/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// WIFIGATE_DATA_DIR env var, or ~/.wifigate as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("WIFIGATE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.wifigate"
}

// loadConfig reads the YAML config file named by --config, falling back to
// ./wifigate.yaml and then <data-dir>/wifigate.yaml. With no file present it
// returns the built-in defaults.
func loadConfig() (*config.YAMLConfig, error) {
	path := cfgFile
	if path == "" {
		for _, candidate := range []string{"wifigate.yaml", filepath.Join(resolveDataDir(), "wifigate.yaml")} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return config.DefaultYAMLConfig(), nil
	}
	return config.LoadYAMLConfig(path)
}

// openStore connects to the database named in cfg. SQLite deployments take
// their data directory from the config or the --data-dir resolution chain.
func openStore(cfg *config.YAMLConfig) (*store.Store, error) {
	driver := cfg.Database.Driver
	dsn := cfg.Database.DSN
	if driver == "" || driver == store.DriverSQLite {
		dsn = cfg.Database.DataDir
		if dsn == "" {
			dsn = resolveDataDir()
		}
	}
	return store.Open(driver, dsn)
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "wifigate.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "wifigate.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}

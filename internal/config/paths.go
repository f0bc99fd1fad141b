package config

import "path/filepath"

const (
	// Global layout under LIFTLOG_HOME.
	ConfigFilePath   = "config.toml"
	DataDirPath      = "data"
	DatabaseFileName = "liftlog.db"
	PIDFilePath      = "liftlog.pid"
)

func homeConfigPath(home string) string {
	return filepath.Join(home, ConfigFilePath)
}

func defaultHomePath(home string) string {
	return filepath.Join(home, ".liftlog")
}

func (c *Config) ConfigPath() string {
	return homeConfigPath(c.HomeDir)
}

func (c *Config) DataDir() string {
	return filepath.Join(c.HomeDir, DataDirPath)
}

func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), DatabaseFileName)
}

func (c *Config) PIDPath() string {
	return filepath.Join(c.DataDir(), PIDFilePath)
}

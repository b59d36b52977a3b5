package config

import (
	"os"
	"strconv"
)

// applyEnv layers CADENCE_* environment variables over the loaded values.
func (c *Config) applyEnv() {
	if v := os.Getenv("CADENCE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CADENCE_DATA_DIR"); v != "" {
		c.Server.DataDir = v
	}
	if v := os.Getenv("CADENCE_STORAGE"); v != "" {
		c.Server.Storage = v
	}
	if v := os.Getenv("CADENCE_SQLITE_PATH"); v != "" {
		c.Server.SQLitePath = v
	}
	if v := getEnvInt("CADENCE_NAME_DEBOUNCE_MS"); v > 0 {
		c.Sync.NameDebounceMS = v
	}
	if v := getEnvInt("CADENCE_DESCRIPTION_DEBOUNCE_MS"); v > 0 {
		c.Sync.DescriptionDebounceMS = v
	}
	if v := getEnvInt("CADENCE_HOURS_DEBOUNCE_MS"); v > 0 {
		c.Sync.HoursDebounceMS = v
	}
	if v := os.Getenv("CADENCE_SORT"); v != "" {
		c.Sync.Sort = v
	}
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}

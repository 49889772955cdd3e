package database

import (
	"os"
	"strconv"
)

// GetTestConfig returns database config for integration tests
func GetTestConfig() Config {
	port := 5432
	if v, err := strconv.Atoi(getEnv("TEST_DB_PORT", "5432")); err == nil {
		port = v
	}
	return Config{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     port,
		Database: getEnv("TEST_DB_NAME", "drengine_test"),
		User:     getEnv("TEST_DB_USER", "drengine"),
		Password: getEnv("TEST_DB_PASSWORD", "drengine"),
		SSLMode:  "disable",
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

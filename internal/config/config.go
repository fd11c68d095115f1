// Package config loads environment variables and the application configuration.
package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"fjacquet/statement-import/internal/fileutils"

	"github.com/joho/godotenv"
)

var (
	envOnce   sync.Once
	envLoaded string
)

// LoadEnv loads the first .env file found in the working directory or its parent
// and returns its path, or "" when there was none. It runs once per process and is
// silent because logging is not configured yet.
func LoadEnv() string {
	envOnce.Do(func() {
		envLoaded, _ = LoadEnvFrom(".", "..")
	})
	return envLoaded
}

// LoadEnvFrom loads <dir>/.env for the first dir that has one. Variables already
// present in the environment keep their value.
func LoadEnvFrom(dirs ...string) (string, error) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, ".env")
		if !fileutils.FileExists(candidate) {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return "", fmt.Errorf("failed to load %s: %w", candidate, err)
		}
		return candidate, nil
	}
	return "", nil
}

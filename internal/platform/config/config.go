package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultEnvFile                 = ".env"
	defaultProjectionWindowMonths  = 6
	envFirestoreProjectID          = "FIRESTORE_PROJECT_ID"
	envGoogleCloudProject          = "GOOGLE_CLOUD_PROJECT"
	envFirestoreEmulatorHost       = "FIRESTORE_EMULATOR_HOST"
	envLogLevel                    = "LOG_LEVEL"
	envProjectionWindowMonths      = "PROJECTION_WINDOW_MONTHS"
	envRoyaltyCollectionsNamespace = "ROYALTY_COLLECTIONS_NAMESPACE"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Firestore  FirestoreConfig
	Logging    LoggingConfig
	Projection ProjectionConfig
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
	// Namespace prefixes collection names so several deployments can share a
	// project. Empty means the bare collection names.
	Namespace string
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string
}

// ProjectionConfig tunes the projection engine defaults.
type ProjectionConfig struct {
	DefaultWindowMonths int
}

// Load assembles configuration from the environment, applying values from a
// local .env file (when present) without overriding variables already set.
func Load() (Config, error) {
	if err := applyEnvFile(defaultEnvFile); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Firestore: FirestoreConfig{
			ProjectID:    firstNonEmpty(os.Getenv(envFirestoreProjectID), os.Getenv(envGoogleCloudProject)),
			EmulatorHost: strings.TrimSpace(os.Getenv(envFirestoreEmulatorHost)),
			Namespace:    strings.TrimSpace(os.Getenv(envRoyaltyCollectionsNamespace)),
		},
		Logging: LoggingConfig{
			Level: strings.TrimSpace(os.Getenv(envLogLevel)),
		},
		Projection: ProjectionConfig{
			DefaultWindowMonths: defaultProjectionWindowMonths,
		},
	}

	if raw := strings.TrimSpace(os.Getenv(envProjectionWindowMonths)); raw != "" {
		months, err := strconv.Atoi(raw)
		if err != nil || months <= 0 {
			return Config{}, fmt.Errorf("config: %s must be a positive integer, got %q", envProjectionWindowMonths, raw)
		}
		cfg.Projection.DefaultWindowMonths = months
	}

	if cfg.Firestore.ProjectID == "" && cfg.Firestore.EmulatorHost == "" {
		return Config{}, fmt.Errorf("config: %s or %s is required", envFirestoreProjectID, envGoogleCloudProject)
	}

	return cfg, nil
}

// applyEnvFile loads KEY=VALUE pairs from the given file into the process
// environment. Missing files are not an error; malformed lines are skipped.
func applyEnvFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("config: set %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	appEnvVar = "APP_ENV"

	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
	EnvironmentStaging     = "staging"

	// DefaultPath is used when no -config flag is given.
	DefaultPath = "config/config.yml"
)

var environmentAliases = map[string]string{
	"dev":   EnvironmentDevelopment,
	"prod":  EnvironmentProduction,
	"stag":  EnvironmentStaging,
	"stage": EnvironmentStaging,
}

// AppEnvironment reads APP_ENV, resolving aliases, and defaults to development.
func AppEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv(appEnvVar)))
	if env == "" {
		return EnvironmentDevelopment
	}
	if canonical, ok := environmentAliases[env]; ok {
		return canonical
	}
	return env
}

// IsProductionLike reports whether env is a deployed environment, where a
// failed quote upload fails the run.
func IsProductionLike(env string) bool {
	switch env {
	case EnvironmentProduction, EnvironmentStaging:
		return true
	default:
		return false
	}
}

// ResolvePath picks config/config.<env>.yml over the default file when the
// caller did not name a file explicitly and the environment file exists.
// An explicit path is always returned unchanged.
func ResolvePath(path string) string {
	if path != "" && path != DefaultPath {
		return path
	}
	env := AppEnvironment()
	ext := filepath.Ext(DefaultPath)
	envPath := strings.TrimSuffix(DefaultPath, ext) + "." + env + ext
	if _, err := os.Stat(envPath); err == nil {
		return envPath
	}
	return DefaultPath
}

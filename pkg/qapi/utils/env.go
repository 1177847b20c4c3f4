package utils

import (
	"os"
	"strings"
)

// IsProd returns true if the application is running in production environment
func IsProd() bool {
	return isProd(os.Getenv("ENVIRONMENT"))
}

// IsDev returns true if the application is running in development environment
func IsDev() bool {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	return env == "development" || env == "dev" || env == ""
}

// GetEnvironment returns the current environment name
func GetEnvironment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "development"
	}
	return env
}

func isProd(env string) bool {
	env = strings.ToLower(env)
	return env == "production" || env == "prod"
}

// SecureCookies reports whether cookies should carry the Secure flag.
// Browsers drop Secure cookies on plain-http localhost, so only the
// explicit "test" environment turns it off.
func SecureCookies(env string) bool {
	return strings.ToLower(env) != "test"
}

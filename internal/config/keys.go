package config

import "os"

// SecretSource represents where a secret comes from.
type SecretSource string

const (
	SecretSourceEnv    SecretSource = "env"
	SecretSourceConfig SecretSource = "config"
	SecretSourceNone   SecretSource = "none"
)

// SecretStatus reports whether a secret is set without revealing it.
type SecretStatus struct {
	Name   string       `json:"name"`
	Source SecretSource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "abc...xyz"
}

// CheckSecrets returns the status of every secret the config can hold.
func CheckSecrets(cfg *Config) []SecretStatus {
	return []SecretStatus{
		checkSecret("API auth token", cfg.API.AuthToken, "DEALSCOPE_API_AUTH_TOKEN"),
	}
}

// checkSecret checks if a secret is set and where it came from.
func checkSecret(name, value, envVar string) SecretStatus {
	status := SecretStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value != "" {
		if os.Getenv(envVar) != "" {
			status.Source = SecretSourceEnv
		} else {
			status.Source = SecretSourceConfig
		}
		status.Masked = maskSecret(value)
	} else {
		status.Source = SecretSourceNone
	}

	return status
}

// maskSecret shows only the first and last 3 chars of longer secrets.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:3] + "..." + s[len(s)-3:]
}

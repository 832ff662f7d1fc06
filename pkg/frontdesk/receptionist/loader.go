// Package receptionist – loader.go handles loading configuration from YAML
// files with credential resolution via environment variables and .env files.
package receptionist

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches environment variable patterns in config values:
//   - ${VAR_NAME}          - simple variable
//   - ${VAR_NAME:-default} - default value if not set
//   - ${VAR_NAME:?error}   - error message if not set
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}`)

// LoadConfigFromFile reads and parses a YAML configuration file.
// Loads .env files first, expands ${VAR} patterns, overlays the YAML onto
// defaults and resolves secrets from keyring/env for any empty key fields.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg)
	checkFilePermissions(path)

	return cfg, nil
}

// ParseConfig parses YAML bytes into a Config, starting from defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env files from the working directory and the user
// config directory. godotenv.Load does NOT overwrite existing env vars,
// so real environment always wins.
func loadEnvFiles() {
	candidates := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".frontdesk", ".env"))
	}
	for _, f := range candidates {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars substitutes ${VAR}, ${VAR:-default} and ${VAR:?error}
// patterns. Returns an error when a ${VAR:?msg} variable is unset.
func expandEnvVars(s string) (string, error) {
	var expandErr error
	out := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, modifier, arg := groups[1], groups[2], groups[3]
		if val, ok := os.LookupEnv(name); ok && val != "" {
			return val
		}
		switch modifier {
		case "-":
			return arg
		case "?":
			if expandErr == nil {
				msg := arg
				if msg == "" {
					msg = "required variable not set"
				}
				expandErr = fmt.Errorf("%s: %s", name, msg)
			}
			return ""
		default:
			return ""
		}
	})
	return out, expandErr
}

// ResolveSecrets fills empty credential fields from the keyring and
// environment. Used when the daemon starts without a config file.
func ResolveSecrets(cfg *Config) {
	loadEnvFiles()
	resolveSecrets(cfg)
}

// resolveSecrets fills empty credential fields from the keyring and
// well-known environment variables. Config-file values take precedence
// so explicit ${VAR} expansion keeps working.
func resolveSecrets(cfg *Config) {
	fill := func(dst *string, keyringKey string, envNames ...string) {
		if *dst != "" {
			return
		}
		if v := GetKeyring(keyringKey); v != "" {
			*dst = v
			return
		}
		for _, name := range envNames {
			if v := os.Getenv(name); v != "" {
				*dst = v
				return
			}
		}
	}

	fill(&cfg.API.APIKey, keyringAPIKey, "FRONTDESK_API_KEY", "OPENAI_API_KEY")
	fill(&cfg.Twilio.AccountSID, keyringTwilioSID, "TWILIO_ACCOUNT_SID")
	fill(&cfg.Twilio.AuthToken, keyringTwilioToken, "TWILIO_AUTH_TOKEN")
	fill(&cfg.Twilio.FromNumber, "", "TWILIO_FROM_NUMBER")
	fill(&cfg.Email.APIKey, keyringEmailKey, "RESEND_API_KEY")
	fill(&cfg.Sheets.AccessToken, "", "SHEETS_ACCESS_TOKEN")
	fill(&cfg.Business.OwnerPhone, "", "OWNER_PHONE")
}

// checkFilePermissions warns when the config file is readable by other
// users, since it may contain plaintext credentials.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.Mode().Perm()&0o044 != 0 {
		fmt.Fprintf(os.Stderr, "warning: %s is readable by other users; consider chmod 600\n", path)
	}
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	if env := os.Getenv("FRONTDESK_CONFIG"); env != "" {
		return env
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".frontdesk", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "config.yaml"
}
